package linkfinder

import "github.com/jonesrussell/venuecrawl/internal/domain"

// targetOrder is the fixed priority of target page types.
var targetOrder = []string{
	domain.PageTypeHours,
	domain.PageTypeMenu,
	domain.PageTypeContact,
	domain.PageTypeAbout,
	domain.PageTypeFees,
}

// keywords holds multilingual signal tokens per target type. Tokens are
// matched in URL paths (word-bounded) and anchor text (substring).
var keywords = map[string][]string{
	domain.PageTypeHours: {
		"hours", "opening", "open", "times", "today", // en
		"heures", "horaires", // fr
		"horario", "abierto", // es
		"orari", "apertura", // it
		"öffnungszeiten", "geöffnet", // de
		"uur", "openingstijden", // nl
		"godziny", "otwarte", // pl
		"horário", // pt
	},
	domain.PageTypeMenu: {
		"menu", "food", "drink", "drinks", "lunch", "dinner",
		"menú", "carta", // es
		"carte", "menu du jour", // fr
		"speisekarte", // de
		"menù", "cucina", // it
		"menukaart", // nl
	},
	domain.PageTypeContact: {
		"contact", "contact-us", "get-in-touch", "enquiries", "inquiries",
		"kontakt", "contatto", "contacto", "contattarci", "kontaktieren",
		"impressum", // de legal/contact
	},
	domain.PageTypeAbout: {
		"about", "about-us", "our-story", "who-we-are",
		"a-propos", "über", "chi-siamo", "sobre", "sobre-nosotros",
		"om-oss", "over-ons",
	},
	domain.PageTypeFees: {
		"fees", "tickets", "pricing", "prices", "admission", "visit",
		"tarifs", "billets", // fr
		"prezzi", "biglietti", // it
		"precios", "entradas", // es
		"preise", // de
	},
}

// negativeKeywords disqualify a link outright when found in its URL path or
// anchor text.
var negativeKeywords = []string{
	"privacy", "terms", "cookies", "careers", "jobs", "press", "news",
	"login", "signin", "account", "admin", "wp-admin", "cart", "checkout",
	"partners", "media", "newsletter", "blog", "events", "gift-card",
}
