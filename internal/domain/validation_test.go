package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"Valid email", "test@example.com", false},
		{"Valid email with subdomain", "user@mail.example.com", false},
		{"Valid email with numbers", "user123@example.com", false},
		{"Valid email with dots", "user.name@example.com", false},
		{"Valid email with plus", "user+tag@example.com", false},
		{"Invalid email - no @", "testexample.com", true},
		{"Invalid email - no domain", "test@", true},
		{"Invalid email - no local part", "@example.com", true},
		{"Invalid email - multiple @", "test@@example.com", true},
		{"Invalid email - empty", "", true},
		{"Invalid email - spaces", "test @example.com", true},
		{"Invalid email - no dot in domain", "test@localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateNamespacePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"Valid path", "myteam", false},
		{"Valid path with numbers", "team42", false},
		{"Valid path with dash", "my-team", false},
		{"Valid minimum length", "abc", false},
		{"Invalid - too short", "ab", true},
		{"Invalid - too long", "abcdefghijklmnopqrstuvwxyz0123456", true},
		{"Invalid - empty", "", true},
		{"Invalid - uppercase", "MyTeam", true},
		{"Invalid - starts with number", "1team", true},
		{"Invalid - starts with dash", "-team", true},
		{"Invalid - ends with dash", "team-", true},
		{"Invalid - double dash", "my--team", true},
		{"Invalid - underscore", "my_team", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNamespacePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateGroupName(t *testing.T) {
	assert.NoError(t, ValidateGroupName("Design Team"))
	assert.ErrorIs(t, ValidateGroupName(""), ErrGroupNameEmpty)

	long := make([]byte, MaxGroupNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateGroupName(string(long)), ErrGroupNameTooLong)
}

func TestValidateContactName(t *testing.T) {
	assert.NoError(t, ValidateContactName("Alice Chen"))
	assert.NoError(t, ValidateContactName("")) // 空姓名合法
	assert.ErrorIs(t, ValidateContactName("bad\x00name"), ErrInvalidContactName)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "x@y.com", NormalizeEmail(" X@Y.com "))
	assert.Equal(t, "a@b.co", NormalizeEmail("A@B.CO"))
}

func TestNormalizeRegistrationCode(t *testing.T) {
	assert.Equal(t, "abcd1234", NormalizeRegistrationCode(" ABCD-1234 "))
	assert.Equal(t, "zz99", NormalizeRegistrationCode("zz-99"))
}
