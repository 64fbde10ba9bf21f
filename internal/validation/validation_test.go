package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email string   `json:"email" validate:"required,email"`
	Code  string   `json:"code" validate:"len=6,numeric"`
	Month *int     `json:"exp_month" validate:"omitempty,min=1,max=12"`
	Name  string   `json:"name" validate:"notblank"`
	Pct   *float64 `json:"percent_off" validate:"omitempty,gt=0,lte=100"`
}

func TestValidatorMessages(t *testing.T) {
	v := New()
	month, pct := 13, 0.0

	cases := []struct {
		in   sample
		want string
	}{
		{sample{Code: "123456", Name: "x"}, "email is required"},
		{sample{Email: "nope", Code: "123456", Name: "x"}, "email must be a valid email"},
		{sample{Email: "a@b.co", Code: "12", Name: "x"}, "code must be 6 characters"},
		{sample{Email: "a@b.co", Code: "12345a", Name: "x"}, "code must contain digits only"},
		{sample{Email: "a@b.co", Code: "123456", Name: "x", Month: &month}, "exp_month must be at most 12"},
		{sample{Email: "a@b.co", Code: "123456", Name: "  "}, "name is required"},
		{sample{Email: "a@b.co", Code: "123456", Name: "x", Pct: &pct}, "percent_off must be greater than 0"},
	}
	for _, tc := range cases {
		err := v.Validate(tc.in)
		require.Error(t, err)
		assert.Equal(t, tc.want, Message(err))
	}
	assert.NoError(t, v.Validate(sample{Email: "a@b.co", Code: "123456", Name: "x"}))
}

type window struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

func TestGtFieldMessageUsesSnakeCase(t *testing.T) {
	now := time.Now()
	err := New().Validate(window{StartsAt: now, EndsAt: now.Add(-time.Hour)})
	require.Error(t, err)
	assert.Equal(t, "ends_at must be after starts_at", Message(err))
}

func TestMessagePassesOtherErrors(t *testing.T) {
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
