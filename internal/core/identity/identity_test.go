package identity_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/envpod/envpod/internal/core/identity"
)

var namePattern = regexp.MustCompile(`^envpod-[0-9a-f]{12}$`)

func TestContainer_StableAndWellFormed(t *testing.T) {
	t.Parallel()
	a := identity.Container("/home/user/app", "main")
	b := identity.Container("/home/user/app", "main")

	assert.Equal(t, a, b)
	assert.Regexp(t, namePattern, a)
}

func TestContainer_DistinctInputsDiffer(t *testing.T) {
	t.Parallel()
	base := identity.Container("/home/user/app", "main")

	assert.NotEqual(t, base, identity.Container("/home/user/app", "gpu"))
	assert.NotEqual(t, base, identity.Container("/home/user/other", "main"))
}

func TestContainer_PathNameBoundaryIsUnambiguous(t *testing.T) {
	t.Parallel()
	// "/a/b" + "c" must not collide with "/a/bc" + "".
	assert.NotEqual(t,
		identity.Container("/a/b", "c"),
		identity.Container("/a/bc", ""))
}

func TestImageTag(t *testing.T) {
	t.Parallel()
	tag := identity.ImageTag("/home/user/app")

	assert.Regexp(t, `^envpod-[0-9a-f]{12}:latest$`, tag)
	assert.Equal(t, tag, identity.ImageTag("/home/user/app"))
	assert.NotEqual(t, tag, identity.ImageTag("/home/user/other"))
}
