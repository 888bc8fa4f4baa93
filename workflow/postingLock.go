package workflow

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// AcquirePostingLock serializes ledger and settlement posting per business
// and scope across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB that will run the posting transaction.
func AcquirePostingLock(tx *gorm.DB, businessId string, scope string) error {
	lockName := fmt.Sprintf("%s:%s", scope, businessId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire %s lock for business_id=%s", scope, businessId)
	}
	return nil
}

func ReleasePostingLock(tx *gorm.DB, businessId string, scope string) {
	lockName := fmt.Sprintf("%s:%s", scope, businessId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
