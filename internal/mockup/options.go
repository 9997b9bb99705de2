package mockup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
)

const (
	DefaultAge    = "25"
	DefaultHeight = "170"
	DefaultWeight = "60"
)

// Options are the user-selected generation settings. Age, height and weight
// stay strings because they are interpolated verbatim into the prompt.
type Options struct {
	Gender       string `json:"gender" validate:"required,oneof=Pria Wanita"`
	Age          string `json:"age" validate:"required,numeric"`
	Height       string `json:"height" validate:"required,numeric"`
	Weight       string `json:"weight" validate:"required,numeric"`
	Pose         string `json:"pose" validate:"required,pose"`
	Background   string `json:"background" validate:"required,background"`
	Instructions string `json:"instructions" validate:"max=1000"`
	Watermark    bool   `json:"watermark"`
}

func DefaultOptions() Options {
	return Options{
		Gender:     GenderMale,
		Age:        DefaultAge,
		Height:     DefaultHeight,
		Weight:     DefaultWeight,
		Pose:       poses[0].Key,
		Background: backgrounds[0].Key,
	}
}

// Normalize fills empty or unparsable numbers with their defaults and
// falls back to the first catalog entry for empty enums.
func (o Options) Normalize() Options {
	o.Gender = strings.TrimSpace(o.Gender)
	if o.Gender == "" {
		o.Gender = GenderMale
	}
	o.Age = numberOr(o.Age, DefaultAge)
	o.Height = numberOr(o.Height, DefaultHeight)
	o.Weight = numberOr(o.Weight, DefaultWeight)

	o.Pose = strings.TrimSpace(o.Pose)
	if o.Pose == "" {
		o.Pose = poses[0].Key
	}
	o.Background = strings.TrimSpace(o.Background)
	if o.Background == "" {
		o.Background = backgrounds[0].Key
	}
	o.Instructions = strings.TrimSpace(o.Instructions)
	return o
}

func (o Options) Validate() error {
	if err := optionsValidator.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func numberOr(value, fallback string) string {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return strconv.Itoa(n)
}

var optionsValidator = newOptionsValidator()

func newOptionsValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("pose", func(fl validator.FieldLevel) bool {
		_, ok := findOption(poses, fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("background", func(fl validator.FieldLevel) bool {
		_, ok := findOption(backgrounds, fl.Field().String())
		return ok
	})
	return v
}
