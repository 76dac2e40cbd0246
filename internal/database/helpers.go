package database

import "database/sql"

// execRequireRows turns an UPDATE that matched no rows into the caller's
// not-found sentinel. A non-nil exec error always wins over the row count.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	affected, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if affected == 0 {
		return notFoundErr
	}
	return nil
}
