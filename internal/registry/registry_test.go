package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/temporal"
)

type fakeComponent struct {
	name   string
	uid    string
	err    error
	closed bool
}

func (f *fakeComponent) Identity(context.Context) (Identity, error) {
	if f.err != nil {
		return Identity{}, f.err
	}
	return Identity{Name: f.name, UID: f.uid}, nil
}

func (f *fakeComponent) Capabilities(context.Context) (map[string]Capability, error) {
	return map[string]Capability{
		"thing": {Description: "a thing", Resolution: temporal.Single(temporal.Tag1h)},
	}, nil
}

func (f *fakeComponent) Close() error {
	f.closed = true
	return nil
}

func comp(name, uid string) *fakeComponent { return &fakeComponent{name: name, uid: uid} }

func static(name string, optional bool, comps ...*fakeComponent) *StaticLocation {
	m := make(map[string]Component, len(comps))
	for _, c := range comps {
		m[c.name] = c
	}
	return NewStaticLocation(name, optional, m)
}

func TestDiscover_BucketsByRole(t *testing.T) {
	builtin := static("builtin", false,
		comp("AMGP_MAP", "00300200"),
		comp("AMGP_UTIL", "00100100"),
		comp("AMGP_MENU", "00220100"),
		comp("AMGP_OBS", "00311000"),
		comp("AMGP_MODEL_FILL", "00510400"),
	)

	reg, err := Discover(context.Background(), []Location{builtin})
	require.NoError(t, err)
	defer reg.Close()

	utils := reg.AllOfRole(identifier.RoleUtility)
	require.Len(t, utils, 2)
	require.Equal(t, "AMGP_UTIL", utils[0].Name)
	require.Equal(t, "AMGP_MAP", utils[1].Name)

	data := reg.AllOfRole(identifier.RoleData)
	require.Len(t, data, 2)
	require.Equal(t, "AMGP_MODEL_FILL", data[0].Name)
	require.Equal(t, "AMGP_OBS", data[1].Name)

	menu := reg.AllOfRole(identifier.RoleMenu)
	require.Len(t, menu, 1)
	require.Equal(t, 100, menu[0].Priority())
	require.Equal(t, 5, reg.Len())
}

func TestDiscover_Lookup(t *testing.T) {
	reg, err := Discover(context.Background(), []Location{static("builtin", false, comp("AMGP_OBS", "00311000"))})
	require.NoError(t, err)

	rec, err := reg.Lookup("00311000")
	require.NoError(t, err)
	require.Equal(t, "AMGP_OBS", rec.Name)
	require.Equal(t, "builtin", rec.Location)

	rec, err = reg.LookupByName("AMGP_OBS")
	require.NoError(t, err)
	require.Equal(t, identifier.ID("00311000"), rec.ID)

	rec, err = reg.Resolve("00311000")
	require.NoError(t, err)
	require.Equal(t, "AMGP_OBS", rec.Name)

	_, err = reg.Lookup("00319999")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = reg.LookupByName("AMGP_NOPE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDiscover_UserOverridesBuiltin(t *testing.T) {
	builtin := comp("AMGP_OBS", "00311000")
	user := comp("AMGP_OBS", "00311000")

	userLoc := NewStaticLocation("user", true, map[string]Component{"AMGP_OBS_V2": user})
	reg, err := Discover(context.Background(), []Location{static("builtin", false, builtin), userLoc})
	require.NoError(t, err)

	rec, err := reg.Lookup("00311000")
	require.NoError(t, err)
	require.Same(t, user, rec.Component)
	require.Equal(t, "user", rec.Location)
	require.Len(t, reg.AllOfRole(identifier.RoleData), 1)
}

func TestDiscover_RankCollisionLaterLocationWins(t *testing.T) {
	reg, err := Discover(context.Background(), []Location{
		static("builtin", false, comp("AMGP_OBS", "00311000")),
		static("user", true, comp("AMGP_SAT", "00411000")),
	})
	require.NoError(t, err)

	data := reg.AllOfRole(identifier.RoleData)
	require.Len(t, data, 1)
	require.Equal(t, "AMGP_SAT", data[0].Name)
	_, err = reg.LookupByName("AMGP_OBS")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDiscover_NameCollisionDifferentID(t *testing.T) {
	t.Run("optional location is skipped", func(t *testing.T) {
		owner := comp("AMGP_OBS", "00311000")
		impostor := comp("AMGP_OBS", "00311001")
		userLoc := NewStaticLocation("user", true, map[string]Component{"AMGP_OTHER": impostor})

		reg, err := Discover(context.Background(), []Location{static("builtin", false, owner), userLoc})
		require.NoError(t, err)
		require.Equal(t, 1, reg.Len())
		require.True(t, impostor.closed)

		rec, err := reg.LookupByName("AMGP_OBS")
		require.NoError(t, err)
		require.Same(t, owner, rec.Component)
		_, err = reg.Lookup("00311001")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, reg.Close())
		require.True(t, owner.closed)
	})

	t.Run("required location aborts", func(t *testing.T) {
		owner := comp("AMGP_OBS", "00311000")
		impostor := comp("AMGP_OBS", "00311001")
		userLoc := NewStaticLocation("user", false, map[string]Component{"AMGP_OTHER": impostor})

		_, err := Discover(context.Background(), []Location{static("builtin", false, owner), userLoc})
		require.ErrorIs(t, err, ErrDuplicateIdentifier)
		require.True(t, impostor.closed)
		require.True(t, owner.closed)

		var derr *DiscoveryError
		require.True(t, errors.As(err, &derr))
		require.Equal(t, "user", derr.Location)
		require.Equal(t, "AMGP_OTHER", derr.Candidate)
	})

	t.Run("same location stays fatal when optional", func(t *testing.T) {
		loc := NewStaticLocation("user", true, map[string]Component{
			"AMGP_A": comp("AMGP_SHARED", "00311000"),
			"AMGP_B": comp("AMGP_SHARED", "00311001"),
		})
		_, err := Discover(context.Background(), []Location{loc})
		require.ErrorIs(t, err, ErrDuplicateIdentifier)
	})
}

type cachingComponent struct {
	*fakeComponent
	invalidated int
}

func (c *cachingComponent) Invalidate() { c.invalidated++ }

func TestRefresh_InvalidatesCachingComponents(t *testing.T) {
	cached := &cachingComponent{fakeComponent: comp("AMGP_SNW", "01410450")}
	loc := NewStaticLocation("user", false, map[string]Component{
		"AMGP_SNW": cached,
		"AMGP_OBS": comp("AMGP_OBS", "00311000"),
	})

	reg, err := Discover(context.Background(), []Location{loc})
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	reg.Refresh()
	reg.Refresh()
	require.Equal(t, 2, cached.invalidated)
}

func TestDiscover_SameLocationCollisionIsFatal(t *testing.T) {
	_, err := Discover(context.Background(), []Location{
		static("builtin", false, comp("AMGP_OBS", "00311000"), comp("AMGP_SAT", "00411000")),
	})
	require.ErrorIs(t, err, ErrDuplicateIdentifier)
}

func TestDiscover_ClaimedNameSkipped(t *testing.T) {
	first := comp("AMGP_OBS", "00311000")
	second := comp("AMGP_OBS", "00311500")

	reg, err := Discover(context.Background(), []Location{static("builtin", false, first), static("user", true, second)})
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())
	rec, err := reg.LookupByName("AMGP_OBS")
	require.NoError(t, err)
	require.Same(t, first, rec.Component)
}

func TestDiscover_IgnoresNamesOutsideConvention(t *testing.T) {
	reg, err := Discover(context.Background(), []Location{
		static("builtin", false, comp("AMGP_OBS", "00311000"), comp("helper", "bogus")),
	})
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	reg, err = Discover(context.Background(), []Location{
		static("builtin", false, comp("helper", "00311000")),
	}, WithPatterns("help*"))
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())
}

func TestDiscover_IdentityFailures(t *testing.T) {
	bad := []*fakeComponent{
		comp("AMGP_BAD", "0031100"),
		comp("AMGP_BAD", "003X1000"),
		comp("AMGP_BAD", "00331000"),
		comp("AMGP_BAD", "00391000"),
		{name: "AMGP_BAD", err: fmt.Errorf("boom")},
	}

	for _, c := range bad {
		_, err := Discover(context.Background(), []Location{static("builtin", false, c)})
		require.Error(t, err, c.uid)
		var derr *DiscoveryError
		require.True(t, errors.As(err, &derr))
		require.Equal(t, "builtin", derr.Location)

		reg, err := Discover(context.Background(), []Location{
			static("builtin", false, comp("AMGP_OBS", "00311000")),
			static("user", true, c),
		})
		require.NoError(t, err, "optional location failures are skipped")
		require.Equal(t, 1, reg.Len())
		require.True(t, c.closed)
	}
}

func TestDiscover_MalformedIdentifierSentinels(t *testing.T) {
	_, err := Discover(context.Background(), []Location{static("builtin", false, comp("AMGP_BAD", "short"))})
	require.ErrorIs(t, err, identifier.ErrMalformedIdentifier)

	_, err = Discover(context.Background(), []Location{static("builtin", false, comp("AMGP_BAD", "00391000"))})
	require.ErrorIs(t, err, identifier.ErrInvalidIdentifier)
}

func TestDiscover_CloseReleasesOverridden(t *testing.T) {
	builtin := comp("AMGP_OBS", "00311000")
	user := comp("AMGP_OBS", "00311000")
	reg, err := Discover(context.Background(), []Location{
		static("builtin", false, builtin),
		NewStaticLocation("user", true, map[string]Component{"AMGP_OBS2": user}),
	})
	require.NoError(t, err)
	require.NoError(t, reg.Close())
	require.True(t, builtin.closed)
	require.True(t, user.closed)
}

func TestDirLocation_Candidates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"AMGP_SNW", "AMGP_RAD.exe", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o755))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "AMGP_DIR"), 0o755))

	var opened []string
	loc := NewDirLocation(dir, true, func(_ context.Context, path string) (Component, error) {
		opened = append(opened, filepath.Base(path))
		return comp("AMGP_"+filepath.Base(path), fmt.Sprintf("0041%04d", len(opened))), nil
	})

	cands, err := loc.Candidates(context.Background())
	require.NoError(t, err)
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.Name
	}
	require.Equal(t, []string{"AMGP_RAD", "AMGP_SNW", "README"}, names)

	reg, err := Discover(context.Background(), []Location{loc})
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())
	require.Equal(t, []string{"AMGP_RAD.exe", "AMGP_SNW"}, opened)
}

func TestDirLocation_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	cands, err := NewDirLocation(missing, true, nil).Candidates(context.Background())
	require.NoError(t, err)
	require.Empty(t, cands)

	_, err = Discover(context.Background(), []Location{NewDirLocation(missing, false, nil)})
	require.Error(t, err)
}

// TestDiscover_RoleOrdering checks that every role bucket stays ascending by
// priority whatever order the candidates arrive in.
func TestDiscover_RoleOrdering(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		priorities := rapid.SliceOfNDistinct(rapid.IntRange(0, identifier.MaxPriority), 1, 30, rapid.ID[int]).Draw(rt, "priorities")
		roles := identifier.Roles

		comps := make(map[string]Component)
		for i, p := range priorities {
			role := roles[rapid.IntRange(0, len(roles)-1).Draw(rt, "role")]
			id, err := identifier.Encode(role, i%identifier.MaxCategory, p)
			require.NoError(rt, err)
			name := fmt.Sprintf("AMGP_C%02d", i)
			comps[name] = comp(name, string(id))
		}

		reg, err := Discover(context.Background(), []Location{NewStaticLocation("builtin", false, comps)})
		require.NoError(rt, err)
		require.Equal(rt, len(priorities), reg.Len())

		for _, role := range roles {
			bucket := reg.AllOfRole(role)
			for i := 1; i < len(bucket); i++ {
				require.Less(rt, bucket[i-1].Priority(), bucket[i].Priority())
			}
		}
	})
}
