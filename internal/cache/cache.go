// Package cache implements the Verified Cache (§4.4): a content-addressed
// directory cache under <home>/cache/<oid>, write-then-rename atomic,
// immutable once present.
//
// Grounded on the teacher's internal/gps/source_cache_bolt.go, whose
// sourceCachePath helper already keys cache entries by a content hash
// under a configured cache directory; restructured here away from a BoltDB
// KV index (see DESIGN.md) into the plain directory tree §3/§4.4 specify.
package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/braydonf/gpk/internal/gitadapter"
)

// Cache is the Verified Cache rooted at dir (<home>/cache).
type Cache struct {
	dir string
}

// New returns a Cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache directory %s", dir)
	}
	return &Cache{dir: dir}, nil
}

// Ref describes how to populate and verify a single Verified Cache Entry,
// per the OID priority rule of §4.4 (annotated_oid > commit_oid_of_tag >
// commit_oid_of_branch_tip) which the caller has already resolved into OID.
type Ref struct {
	// OID is the cache key: the annotated tag OID if present, else the
	// commit OID of a signed lightweight tag or signed branch tip.
	OID string

	// CloneRef is the ref name passed to `git clone --branch`: the tag
	// name for a tag-based install, or the branch name.
	CloneRef string

	// VerifyTag is the tag name to pass to `git verify-tag`, set only for
	// an annotated tag. Mutually exclusive with VerifyCommit.
	VerifyTag string

	// VerifyCommit is the commit OID to pass to `git verify-commit`, set
	// for a lightweight tag or a branch tip. Mutually exclusive with
	// VerifyTag.
	VerifyCommit string
}

// Entry returns the path a Verified Cache Entry for oid would occupy,
// without fetching it.
func (c *Cache) Entry(oid string) string {
	return filepath.Join(c.dir, oid)
}

// Has reports whether a Verified Cache Entry already exists for oid (a
// cache hit, per P3: no further Git operations are needed).
func (c *Cache) Has(oid string) bool {
	_, err := os.Stat(c.Entry(oid))
	return err == nil
}

// FetchVerified implements §4.4's algorithm: return the existing entry on a
// cache hit; otherwise clone to a uniquely-named unverified staging
// directory, verify its signature, and atomically rename it into place.
// On any failure the staging directory is left behind; it is never
// considered a valid cache entry (P4), and a later run stages into a fresh
// uniquely-named directory of its own.
func (c *Cache) FetchVerified(ctx context.Context, gitURL string, ref Ref) (string, error) {
	dst := c.Entry(ref.OID)
	if c.Has(ref.OID) {
		return dst, nil
	}

	tmp, err := c.stage(ref.OID)
	if err != nil {
		return "", err
	}

	if err := gitadapter.CloneRef(ctx, ref.CloneRef, gitURL, tmp); err != nil {
		return "", errors.Wrapf(err, "cloning %s", gitURL)
	}

	if err := gitadapter.Verify(ctx, ref.VerifyTag, ref.VerifyCommit, tmp); err != nil {
		// Verification failures are fatal and never recovered; tmp is
		// left in place so the next run retries cleanly (§7).
		return "", err
	}

	if err := os.Rename(tmp, dst); err != nil {
		// Another worker may have won the race for the same OID; if the
		// destination now exists, that's a cache hit and our staging
		// directory is simply discarded.
		if c.Has(ref.OID) {
			os.RemoveAll(tmp)
			return dst, nil
		}
		return "", errors.Wrapf(err, "renaming %s into cache", tmp)
	}

	return dst, nil
}

// stage picks a unique "<oid>-unverified-<unique>" temp directory under
// the cache root so concurrent populators of the same OID never collide
// before the rename decides a winner (§5).
func (c *Cache) stage(oid string) (string, error) {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", errors.Wrap(err, "generating staging suffix")
	}
	tmp := filepath.Join(c.dir, oid+"-unverified-"+hex.EncodeToString(suffix))
	if err := os.MkdirAll(filepath.Dir(tmp), 0o755); err != nil {
		return "", errors.Wrapf(err, "creating cache directory %s", filepath.Dir(tmp))
	}
	return tmp, nil
}
