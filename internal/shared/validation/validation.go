// Package validation registers the custom binding tags used by request DTOs.
package validation

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	DateLayout      = "2006-01-02"
	ClockLayout     = "15:04"
	ClockLayoutSecs = "15:04:05"
)

var once sync.Once

// Register adds the isodate and clock tags to gin's validator engine
func Register() {
	once.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			RegisterOn(v)
		}
	})
}

// RegisterOn adds the custom tags to v
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		return IsDate(fl.Field().String())
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return IsClock(fl.Field().String())
	})
}

// IsDate accepts YYYY-MM-DD calendar dates
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// IsClock accepts HH:MM or HH:MM:SS
func IsClock(s string) bool {
	if _, err := time.Parse(ClockLayout, s); err == nil {
		return true
	}
	_, err := time.Parse(ClockLayoutSecs, s)
	return err == nil
}

// NormalizeClock renders a valid clock value as HH:MM:SS
func NormalizeClock(s string) string {
	if t, err := time.Parse(ClockLayout, s); err == nil {
		return t.Format(ClockLayoutSecs)
	}
	if t, err := time.Parse(ClockLayoutSecs, s); err == nil {
		return t.Format(ClockLayoutSecs)
	}
	return s
}
