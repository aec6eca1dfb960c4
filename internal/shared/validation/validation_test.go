package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestIsDate(t *testing.T) {
	assert.True(t, IsDate("2025-03-01"))
	assert.False(t, IsDate("2025-02-30"))
	assert.False(t, IsDate("01/03/2025"))
	assert.False(t, IsDate(""))
}

func TestIsClock(t *testing.T) {
	assert.True(t, IsClock("09:30"))
	assert.True(t, IsClock("23:59:59"))
	assert.False(t, IsClock("24:00"))
	assert.False(t, IsClock("9h30"))
}

func TestNormalizeClock(t *testing.T) {
	assert.Equal(t, "09:30:00", NormalizeClock("09:30"))
	assert.Equal(t, "18:15:05", NormalizeClock("18:15:05"))
}

func TestRegisterOn(t *testing.T) {
	type payload struct {
		Date string `validate:"required,isodate"`
		Time string `validate:"required,clock"`
	}

	v := validator.New()
	RegisterOn(v)

	assert.NoError(t, v.Struct(payload{Date: "2025-06-01", Time: "10:00"}))
	assert.Error(t, v.Struct(payload{Date: "2025-13-01", Time: "10:00"}))
	assert.Error(t, v.Struct(payload{Date: "2025-06-01", Time: "noon"}))
}
