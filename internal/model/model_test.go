package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemberRole_IsManager(t *testing.T) {
	cases := map[MemberRole]bool{
		RoleOwner:      true,
		RoleAdmin:      true,
		RoleMember:     false,
		MemberRole(""): false,
	}
	for role, want := range cases {
		assert.Equal(t, want, role.IsManager(), "MemberRole(%q).IsManager()", role)
	}
}

func TestDefaultUserSettings(t *testing.T) {
	s := DefaultUserSettings(42)
	assert.Equal(t, int64(42), s.UserID)
	assert.True(t, s.ReadReceiptsEnabled, "ReadReceiptsEnabled should default to true")
	assert.True(t, s.NotificationsEnabled, "NotificationsEnabled should default to true")
	assert.NotEmpty(t, s.Theme, "Theme should have a non-empty default")
	assert.NotEmpty(t, s.LastSeenVisibility, "LastSeenVisibility should have a non-empty default")
}
