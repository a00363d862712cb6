package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/utask/internal/common"
)

// transient marks an infrastructure failure. Not-found results never reach
// here; callers translate them into domain errors first.
func transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrTransient, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}
