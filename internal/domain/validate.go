package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidQuestion is returned for questions that break the model invariants.
var ErrInvalidQuestion = errors.New("invalid question")

// Validate checks a question against its invariants: a prompt, at least one
// option and an answer index that points into the options.
func Validate(q Question) error {
	if err := validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidQuestion, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	if q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: answer index %d out of range for %d options", ErrInvalidQuestion, q.CorrectIndex, len(q.Options))
	}
	return nil
}
