package intake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberthread/storefront/pkg/models"
)

func validForm() Form {
	return Form{
		Name:     "Juliette",
		Email:    "a@b.co",
		Phone:    "+27 82 555 0101",
		Item:     "Pink Ruffle Hat",
		Quantity: "1",
		Size:     "M",
		Color:    "pink",
	}
}

func TestValidateAcceptsValidForm(t *testing.T) {
	draft, errs := Validate(validForm())
	require.Nil(t, errs)
	require.NotNil(t, draft)
	assert.Equal(t, "Juliette", draft.Name)
	assert.Equal(t, 1, draft.Quantity)
	assert.Equal(t, models.SizeM, draft.Size)
}

func TestValidateRejectsBadEmail(t *testing.T) {
	f := validForm()
	f.Email = "not-an-email"
	draft, errs := Validate(f)
	assert.Nil(t, draft)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "email")
}

func TestValidateRequiresEmail(t *testing.T) {
	f := validForm()
	f.Email = "  "
	_, errs := Validate(f)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "email")
}

func TestValidateName(t *testing.T) {
	f := validForm()
	f.Name = " J "
	_, errs := Validate(f)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "name")
}

func TestValidatePhoneOptionalButChecked(t *testing.T) {
	f := validForm()
	f.Phone = ""
	_, errs := Validate(f)
	assert.Nil(t, errs)

	f.Phone = "abc"
	_, errs = Validate(f)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "phone")

	f.Phone = "(021) 555-0101"
	_, errs = Validate(f)
	assert.Nil(t, errs)
}

func TestValidateQuantity(t *testing.T) {
	for _, bad := range []string{"", "0", "-2", "1.5", "many"} {
		f := validForm()
		f.Quantity = bad
		_, errs := Validate(f)
		require.NotNil(t, errs, "quantity %q should be rejected", bad)
		assert.Contains(t, errs, "quantity")
	}
}

func TestValidateSize(t *testing.T) {
	f := validForm()
	f.Size = "XXL"
	_, errs := Validate(f)
	require.NotNil(t, errs)
	assert.Contains(t, errs, "size")

	f.Size = "Custom"
	_, errs = Validate(f)
	assert.Nil(t, errs)
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 1, ClampQuantity(0))
	assert.Equal(t, 1, ClampQuantity(-5))
	assert.Equal(t, 1, ClampQuantity(1))
	assert.Equal(t, 4, ClampQuantity(4))
}
