// Package storage turns source URIs into local file paths. Local paths pass
// through; s3://bucket/key objects are downloaded once per process into a
// temporary directory that Close removes.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"seisterrain3d/pkg/config"
)

const s3Scheme = "s3://"

var log = config.NamedLogger("storage")

var (
	// ErrNotFound is returned for missing remote objects
	ErrNotFound = errors.New("object not found")

	// ErrOutsideRoot is returned for local paths that leave the allowed root
	ErrOutsideRoot = errors.New("path is outside the data directory")
)

// IsS3URI reports whether uri names an S3 object
func IsS3URI(uri string) bool {
	return strings.HasPrefix(uri, s3Scheme)
}

// ParseS3URI splits s3://bucket/key into bucket and key
func ParseS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, s3Scheme)
	if trimmed == uri {
		return "", "", fmt.Errorf("not a valid S3 url: %v", uri)
	}

	slashPos := strings.Index(trimmed, "/")
	if slashPos <= 0 || slashPos == len(trimmed)-1 {
		return "", "", fmt.Errorf("failed to get bucket and key from S3 url: %v", uri)
	}
	return trimmed[:slashPos], trimmed[slashPos+1:], nil
}

// ResolveUnder maps a local uri onto root. Relative paths are taken from
// root; absolute ones must already lie inside it. Symbolic links are
// followed for existing files, so a link cannot lead out of root. S3 URIs
// are returned unchanged.
func ResolveUnder(root, uri string) (string, error) {
	if IsS3URI(uri) {
		return uri, nil
	}
	if root == "" {
		return "", errors.Wrap(ErrOutsideRoot, "local sources are disabled")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}

	p := uri
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	p = filepath.Clean(p)
	if !within(absRoot, p) {
		return "", errors.Wrap(ErrOutsideRoot, uri)
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		// Missing files are reported by Materialize
		return p, nil
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", err
	}
	if !within(realRoot, resolved) {
		return "", errors.Wrap(ErrOutsideRoot, uri)
	}
	return p, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// DefaultMaxUploads bounds the uploads kept on disk
const DefaultMaxUploads = 32

// upload is one stored upload. Its file is removed once it has been evicted
// and no caller holds it.
type upload struct {
	path    string
	refs    int
	evicted bool
}

// Materializer resolves source URIs to local paths, safe for concurrent use
type Materializer struct {
	region  string
	baseDir string

	mu         sync.Mutex
	s3Api      s3iface.S3API
	tempDir    string
	downloaded map[string]string
	uploads    *lru.Cache[string, *upload]
	uploadSeq  int
}

// NewMaterializer creates a materializer that opens an AWS session in
// region on first S3 use and downloads into baseDir (OS default when empty)
func NewMaterializer(region, baseDir string) *Materializer {
	m := &Materializer{region: region, baseDir: baseDir, downloaded: map[string]string{}}
	m.uploads, _ = lru.NewWithEvict[string, *upload](DefaultMaxUploads, m.uploadEvicted)
	return m
}

// NewMaterializerWithClient uses an existing S3 client
func NewMaterializerWithClient(s3Api s3iface.S3API, baseDir string) *Materializer {
	m := NewMaterializer("", baseDir)
	m.s3Api = s3Api
	return m
}

// SetMaxUploads changes how many uploads are kept, evicting the least
// recently used ones beyond n
func (m *Materializer) SetMaxUploads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n < 1 {
		n = 1
	}
	m.uploads.Resize(n)
}

func (m *Materializer) client() (s3iface.S3API, error) {
	if m.s3Api != nil {
		return m.s3Api, nil
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(m.region)})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create AWS session")
	}
	m.s3Api = s3.New(sess)
	return m.s3Api, nil
}

// Materialize returns a local path holding uri's content. Repeated calls
// for one S3 object return the same path, so file identities stay stable.
func (m *Materializer) Materialize(ctx context.Context, uri string) (string, error) {
	if !IsS3URI(uri) {
		if _, err := os.Stat(uri); err != nil {
			return "", err
		}
		return uri, nil
	}

	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.downloaded[uri]; ok {
		return p, nil
	}

	api, err := m.client()
	if err != nil {
		return "", err
	}
	if m.tempDir == "" {
		if m.tempDir, err = os.MkdirTemp(m.baseDir, "seisterrain3d-"); err != nil {
			return "", errors.Wrap(err, "failed to create download directory")
		}
	}

	local := filepath.Join(m.tempDir, fmt.Sprintf("%d-%s", len(m.downloaded), path.Base(key)))
	if err := download(ctx, api, bucket, key, local); err != nil {
		return "", errors.Wrapf(err, "failed to download %v", uri)
	}
	log.Infof("Downloaded %v to %v", uri, local)

	m.downloaded[uri] = local
	return local, nil
}

// MaterializeBytes writes uploaded content to a local file named by its
// hash. Identical content held at the same time maps to the same path and
// is written once. The caller must call release when done with the path;
// the file may be removed after that.
func (m *Materializer) MaterializeBytes(name string, data []byte) (string, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strconv.FormatUint(xxhash.Sum64(data), 16)
	if u, ok := m.uploads.Get(key); ok {
		u.refs++
		return u.path, m.releaser(u), nil
	}

	if m.tempDir == "" {
		var err error
		if m.tempDir, err = os.MkdirTemp(m.baseDir, "seisterrain3d-"); err != nil {
			return "", nil, errors.Wrap(err, "failed to create upload directory")
		}
	}

	local := filepath.Join(m.tempDir, fmt.Sprintf("%s-%d%s", key, m.uploadSeq, filepath.Ext(name)))
	m.uploadSeq++
	if err := os.WriteFile(local, data, 0644); err != nil {
		return "", nil, errors.Wrapf(err, "failed to store upload %v", name)
	}
	log.Debugf("Stored upload %v (%d bytes) at %v", name, len(data), local)

	u := &upload{path: local, refs: 1}
	m.uploads.Add(key, u)
	return local, m.releaser(u), nil
}

func (m *Materializer) releaser(u *upload) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()

			u.refs--
			if u.refs == 0 && u.evicted {
				removeUpload(u)
			}
		})
	}
}

// uploadEvicted runs with m.mu held, from Add, Resize or Purge
func (m *Materializer) uploadEvicted(_ string, u *upload) {
	u.evicted = true
	if u.refs == 0 {
		removeUpload(u)
	}
}

func removeUpload(u *upload) {
	if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to remove upload %v: %v", u.path, err)
	}
}

func download(ctx context.Context, api s3iface.S3API, bucket, key, local string) error {
	result, err := api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return ErrNotFound
		}
		return err
	}
	defer result.Body.Close()

	f, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, result.Body); err != nil {
		f.Close()
		os.Remove(local)
		return err
	}
	return f.Close()
}

func isNotFoundError(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}

// Close removes every downloaded and uploaded file
func (m *Materializer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.downloaded = map[string]string{}
	m.uploads.Purge()
	if m.tempDir == "" {
		return nil
	}
	dir := m.tempDir
	m.tempDir = ""
	return os.RemoveAll(dir)
}
