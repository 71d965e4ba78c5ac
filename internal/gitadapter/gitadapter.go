// Package gitadapter is the Git Adapter (§4.3): a contract-only surface
// shelling out to the git binary, documented in §6. Every operation takes a
// context.Context so it is a suspension point the cooperative scheduler of
// §5 can cancel; subprocess failures are wrapped as gpkerr.GitError.
//
// Grounded on the teacher's internal/gps/vcs_repo.go (commandContext,
// ctxRepo, newVcsRemoteErrorOr/newVcsLocalErrorOr wrapping through
// vcs.NewRemoteError/vcs.NewLocalError) and vcs_source.go's ls-remote
// parsing.
package gitadapter

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"

	"github.com/braydonf/gpk/internal/gpkerr"
)

// TagRef is the per-tag view described for the Remote Tag View: annotated
// tags carry both an annotated OID and the commit OID they point to;
// lightweight tags carry only the commit OID.
type TagRef struct {
	AnnotatedOID string
	CommitOID    string
}

// BranchView is the result of list_branches: every branch's tip commit plus
// the ref HEAD resolves to.
type BranchView struct {
	Branches map[string]string
	Head     string
}

// remote reports whether a git subcommand talks to a remote (and so should
// be wrapped as a vcs.RemoteError rather than a vcs.LocalError, mirroring
// the teacher's newVcsRemoteErrorOr/newVcsLocalErrorOr split).
func remote(verb string) bool {
	switch verb {
	case "clone", "ls-remote-tags", "ls-remote-symref", "ls-remote-heads":
		return true
	default:
		return false
	}
}

// run executes a git subprocess in dir (if non-empty) and returns its
// stdout. Any failure is wrapped first as a vcs.RemoteError or
// vcs.LocalError (the same taxonomy Masterminds/vcs itself uses), then as a
// gpkerr.GitError tagged with stage, so callers can match on either layer.
func run(ctx context.Context, dir, stage string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var vcsErr error
		if remote(stage) {
			vcsErr = vcs.NewRemoteError(fmt.Sprintf("git %s failed", stage), err, stderr.String())
		} else {
			vcsErr = vcs.NewLocalError(fmt.Sprintf("git %s failed", stage), err, stderr.String())
		}
		return nil, errors.Wrapf(&gpkerr.GitError{Stage: stage, Stderr: stderr.String()}, "%s: git %s", vcsErr, strings.Join(args, " "))
	}
	return stdout.Bytes(), nil
}

// ListTags runs `git ls-remote --tags <url>` and merges peeled annotated
// OIDs with their commit OIDs per tag name.
func ListTags(ctx context.Context, url string) (map[string]TagRef, error) {
	out, err := run(ctx, "", "ls-remote-tags", "ls-remote", "--tags", url)
	if err != nil {
		return nil, err
	}
	return parseLsRemoteTags(string(out)), nil
}

// parseLsRemoteTags parses `ls-remote --tags` output, merging a tag's
// peeled `^{}` commit OID with its own annotated OID.
func parseLsRemoteTags(out string) map[string]TagRef {
	tags := make(map[string]TagRef)
	peeled := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		oid, ref := fields[0], fields[1]
		const prefix = "refs/tags/"
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		name := strings.TrimPrefix(ref, prefix)
		if tagName, ok := strings.CutSuffix(name, "^{}"); ok {
			t := tags[tagName]
			t.CommitOID = oid
			tags[tagName] = t
			peeled[tagName] = true
			continue
		}
		t := tags[name]
		t.AnnotatedOID = oid
		tags[name] = t
	}

	// A lightweight tag has no peeled ^{} line, so its single ls-remote
	// entry is the commit OID itself, not an annotated tag OID. Re-derive:
	// any tag never seen on a ^{} line is lightweight, and what was stored
	// as AnnotatedOID is in fact its commit OID.
	for name, t := range tags {
		if !peeled[name] {
			t.CommitOID = t.AnnotatedOID
			t.AnnotatedOID = ""
			tags[name] = t
		}
	}
	return tags
}

// ListBranches runs `git ls-remote --symref <url> HEAD` plus
// `git ls-remote --heads <url>` for branch tips.
func ListBranches(ctx context.Context, url string) (*BranchView, error) {
	symOut, err := run(ctx, "", "ls-remote-symref", "ls-remote", "--symref", url, "HEAD")
	if err != nil {
		return nil, err
	}

	headsOut, err := run(ctx, "", "ls-remote-heads", "ls-remote", "--heads", url)
	if err != nil {
		return nil, err
	}

	return parseLsRemoteBranches(string(symOut), string(headsOut)), nil
}

func parseLsRemoteBranches(symOut, headsOut string) *BranchView {
	view := &BranchView{Branches: make(map[string]string)}
	for _, line := range strings.Split(symOut, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "ref:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		view.Head = strings.TrimPrefix(fields[1], "refs/heads/")
	}

	for _, line := range strings.Split(headsOut, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		oid, ref := fields[0], fields[1]
		const prefix = "refs/heads/"
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		view.Branches[strings.TrimPrefix(ref, prefix)] = oid
	}
	return view
}

// CloneRef performs a shallow clone at a single ref:
// `git clone --depth 1 --branch <ref> <url> <dst>`.
func CloneRef(ctx context.Context, ref, url, dst string) error {
	_, err := run(ctx, "", "clone", "clone", "--depth", "1", "--branch", ref, url, dst)
	return err
}

// Verify runs `git verify-tag <tag>` if tag is non-empty, else
// `git verify-commit <commit>`, with cwd=dst. Success is exit 0; any
// non-zero exit is a gpkerr.VerificationFailure, which is never recovered.
func Verify(ctx context.Context, tag, commit, dst string) error {
	var args []string
	var ref string
	if tag != "" {
		args = []string{"verify-tag", tag}
		ref = tag
	} else {
		args = []string{"verify-commit", commit}
		ref = commit
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dst
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &gpkerr.VerificationFailure{Ref: ref, Stderr: stderr.String()}
	}
	return nil
}

// HeadCommit reads the HEAD commit OID of a local clone.
func HeadCommit(ctx context.Context, dst string) (string, error) {
	out, err := run(ctx, dst, "rev-parse", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Archive writes `git archive HEAD` to dst, run with cwd=src.
func Archive(ctx context.Context, src, dst string) error {
	_, err := run(ctx, src, "archive", "archive", "-o", dst, "HEAD")
	return err
}

// ListTree runs `git ls-tree --full-tree -r --name-only HEAD`, sorted.
func ListTree(ctx context.Context, dst string) ([]string, error) {
	out, err := run(ctx, dst, "ls-tree", "ls-tree", "--full-tree", "-r", "--name-only", "HEAD")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func newHash(algo string) (hash.Hash, error) {
	switch algo {
	case "sha256":
		return sha256.New(), nil
	case "sha1":
		return sha1.New(), nil
	default:
		return nil, errors.Errorf("unsupported tree hash algorithm %q", algo)
	}
}

// TreeHash feeds hex(digest(file)) + "  " + path + "\n" for each path in
// sorted ListTree output into a rolling digest under base, used by the
// reproducibility tests of P7.
func TreeHash(ctx context.Context, dst, base, algo string) (string, error) {
	paths, err := ListTree(ctx, dst)
	if err != nil {
		return "", err
	}

	rolling, err := newHash(algo)
	if err != nil {
		return "", err
	}

	for _, p := range paths {
		fileHash, err := newHash(algo)
		if err != nil {
			return "", err
		}
		f, err := os.Open(filepath.Join(base, p))
		if err != nil {
			return "", errors.Wrapf(err, "hashing %s", p)
		}
		_, err = io.Copy(fileHash, f)
		f.Close()
		if err != nil {
			return "", errors.Wrapf(err, "hashing %s", p)
		}

		fmt.Fprintf(rolling, "%s  %s\n", hex.EncodeToString(fileHash.Sum(nil)), p)
	}

	return hex.EncodeToString(rolling.Sum(nil)), nil
}
