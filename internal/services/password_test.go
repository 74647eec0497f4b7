package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hashed, err := h.Hash("S3cure!pass")
	require.NoError(t, err)
	assert.NotEqual(t, "S3cure!pass", hashed)
	assert.True(t, h.Verify(hashed, "S3cure!pass"))
	assert.False(t, h.Verify(hashed, "s3cure!pass"))
	assert.False(t, h.Verify("not-a-hash", "S3cure!pass"))

	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
}

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, ValidatePassword("S3cure!pass", UserAttribute{Label: "username", Value: "alice"}))

	assert.ElementsMatch(t, []string{
		"This password is too short. It must contain at least 8 characters.",
		"This password is entirely numeric.",
	}, ValidatePassword("90817"))

	assert.ElementsMatch(t, []string{
		"This password is too common.",
		"This password is entirely numeric.",
	}, ValidatePassword("12345678"))

	assert.Contains(t, ValidatePassword("Password"), "This password is too common.")

	assert.Equal(t, []string{"The password is too similar to the email address."},
		ValidatePassword("wonderland!", UserAttribute{Label: "email address", Value: "alice@wonderland.test"}))

	assert.Empty(t, ValidatePassword("averylongpassphrase!", UserAttribute{Label: "first name", Value: "Al"}),
		"short attributes cannot make a long password similar")
}

func TestQuickRatio(t *testing.T) {
	assert.Equal(t, 1.0, quickRatio("abc", "cba"))
	assert.Equal(t, 0.0, quickRatio("abc", "xyz"))
	assert.Equal(t, 1.0, quickRatio("", ""))
	assert.InDelta(t, 10.0/11.0, quickRatio("alice1", "alice"), 1e-9)
}

func TestOptional(t *testing.T) {
	var in TaskInput
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","due_date":null}`), &in))

	assert.Equal(t, Some("x"), in.Title)
	assert.True(t, in.DueDate.Set)
	assert.True(t, in.DueDate.Null)
	assert.False(t, in.Priority.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"due_date":"2030-01-02T03:04:05Z"}`), &in))
	assert.False(t, in.DueDate.Null)
	assert.Equal(t, time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC), in.DueDate.Value)

	var bad TaskInput
	assert.Error(t, json.Unmarshal([]byte(`{"status":"yes"}`), &bad))

	out, err := json.Marshal(struct {
		A Optional[int] `json:"a"`
		B Optional[int] `json:"b"`
	}{A: Some(3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3,"b":null}`, string(out))
}

func TestValidationError(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.Err())

	verr.Add("title", "Title cannot be empty")
	verr.Add("due_date", "Due date cannot be in the past")
	assert.Error(t, verr.Err())
	assert.Equal(t, "validation failed: due_date: Due date cannot be in the past; title: Title cannot be empty", verr.Error())
}
