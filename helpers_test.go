package flowver

import (
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

var testSignature = &object.Signature{
	Name:  "test",
	Email: "test@example.com",
	When:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

// testRepoCreate creates a new in-memory git repository whose first commit
// lands on branch
func testRepoCreate(branch string) (*git.Repository, error) {
	storage := memory.NewStorage()
	fs := memfs.New()
	repo, err := git.Init(storage, fs)
	if err != nil {
		return nil, err
	}
	return repo, setHead(repo, branch)
}

// testRepoFSCreate creates a new on-disk git repository for testing
func testRepoFSCreate(path, branch string) (*git.Repository, error) {
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, err
	}
	return repo, setHead(repo, branch)
}

func setHead(repo *git.Repository, branch string) error {
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	return repo.Storer.SetReference(head)
}

// testRepoCommit writes a file named after msg and commits it
func testRepoCommit(repo *git.Repository, msg string) (plumbing.Hash, error) {
	workTree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	filename := "file_" + msg + ".txt"
	err = writeFile(workTree.Filesystem, filename, "Content for "+msg)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	_, err = workTree.Add(filename)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	return workTree.Commit(msg, &git.CommitOptions{Author: testSignature})
}

// testRepoCommits adds n commits and returns the hash of the last one
func testRepoCommits(repo *git.Repository, prefix string, n int) (plumbing.Hash, error) {
	var hash plumbing.Hash
	for i := 0; i < n; i++ {
		var err error
		hash, err = testRepoCommit(repo, prefix+"-"+string(rune('a'+i)))
		if err != nil {
			return plumbing.ZeroHash, err
		}
	}
	return hash, nil
}

// testRepoCheckout creates branch at HEAD and checks it out
func testRepoCheckout(repo *git.Repository, branch string) error {
	workTree, err := repo.Worktree()
	if err != nil {
		return err
	}
	return workTree.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	})
}

// testRepoAnnotatedTag creates an annotated tag on hash
func testRepoAnnotatedTag(repo *git.Repository, name string, hash plumbing.Hash) error {
	_, err := repo.CreateTag(name, hash, &git.CreateTagOptions{
		Tagger:  testSignature,
		Message: "Release " + name,
	})
	return err
}

// testRepoGitFlow builds a repository with tagged releases on main and work
// continuing on develop:
//
//	main:    c1 (1.0.0) - c2 (1.1.0)
//	develop:                 \ - d1 - d2 - d3
func testRepoGitFlow() (*git.Repository, error) {
	repo, err := testRepoCreate("main")
	if err != nil {
		return nil, err
	}

	first, err := testRepoCommit(repo, "c1")
	if err != nil {
		return nil, err
	}
	if _, err := repo.CreateTag("1.0.0", first, nil); err != nil {
		return nil, err
	}

	second, err := testRepoCommit(repo, "c2")
	if err != nil {
		return nil, err
	}
	if err := testRepoAnnotatedTag(repo, "1.1.0", second); err != nil {
		return nil, err
	}

	if err := testRepoCheckout(repo, "develop"); err != nil {
		return nil, err
	}
	if _, err := testRepoCommits(repo, "d", 3); err != nil {
		return nil, err
	}

	return repo, nil
}

// writeFile writes content to a file in the given filesystem
func writeFile(fs billy.Filesystem, filename, content string) error {
	file, err := fs.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.Write([]byte(content))
	return err
}
