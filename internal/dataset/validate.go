package dataset

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mldataset/internal/apperr"
	"github.com/starford/mldataset/internal/storage"
)

const maxNameLength = 255

// ValidateName checks that name can be used as a single directory entry.
func ValidateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		validation.Length(1, maxNameLength),
		validation.By(plainName),
	)
	if err != nil {
		return fmt.Errorf("%w %q: %w", apperr.ErrInvalidName, name, err)
	}
	return nil
}

// ValidateItemName is ValidateName plus a ban on the temp-file prefix, which
// would hide the item from listings.
func ValidateItemName(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if strings.HasPrefix(name, storage.TempPrefix) {
		return fmt.Errorf("%w %q: reserved prefix", apperr.ErrInvalidName, name)
	}
	return nil
}

func plainName(value interface{}) error {
	s, _ := value.(string)
	switch {
	case strings.TrimSpace(s) == "":
		return errors.New("must not be blank")
	case s == "." || s == "..":
		return errors.New("must not be a relative path element")
	case strings.ContainsAny(s, `/\`):
		return errors.New("must not contain path separators")
	case strings.ContainsRune(s, 0):
		return errors.New("must not contain NUL")
	}
	return nil
}
