package registry_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lostfound/internal/models"
	"lostfound/internal/registry"
	"lostfound/internal/registry/registrytest"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	mem   *registrytest.Store
	media *registrytest.Media
	audit *registrytest.Audit
	svc   *registry.Service

	member registry.Actor
	other  registry.Actor
	staff  registry.Actor
}

func newFixture(t *testing.T, policy registry.SubmissionPolicy) *fixture {
	t.Helper()

	mem := registrytest.New()
	mem.Now = func() time.Time { return fixedNow }
	media := registrytest.NewMedia()
	audit := &registrytest.Audit{}

	svc := registry.New(mem.Repos(), mem, registry.Options{
		Policy: policy,
		Media:  media,
		Audit:  audit,
		Now:    func() time.Time { return fixedNow },
	})

	member := mem.AddUser("alice", models.RoleMember)
	other := mem.AddUser("bob", models.RoleMember)
	staff := mem.AddUser("guard", models.RoleStaff)

	return &fixture{
		mem:    mem,
		media:  media,
		audit:  audit,
		svc:    svc,
		member: registry.Actor{ID: member.ID, Role: member.Role},
		other:  registry.Actor{ID: other.ID, Role: other.Role},
		staff:  registry.Actor{ID: staff.ID, Role: staff.Role},
	}
}

func validInput(name, category string) registry.SubmitInput {
	return registry.SubmitInput{
		Name:          name,
		CategoryName:  category,
		FoundLocation: "Library 2F",
		FoundDate:     "2026-03-09",
	}
}

func (f *fixture) submit(t *testing.T, name, category string) *models.Item {
	t.Helper()
	item, err := f.svc.Submit(t.Context(), validInput(name, category), f.member)
	require.NoError(t, err)
	return item
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ptr[T any](v T) *T { return &v }
