// Package s3backend implements a backend.Backend backed by an S3-compatible
// object store, trimmed to what the partitioning layer actually needs:
// since part.Part already caps every object at max_part_size (typically a
// few MiB, well under S3's 5GB single-PUT limit), there is no multipart
// upload path here; a part's whole content is buffered in memory and
// PutObject'd on Close.
package s3backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/lukasmartinelli-alt/cuckoodrive/backend"
	"github.com/lukasmartinelli-alt/cuckoodrive/backend/factory"
)

const driverName = "s3"

func init() {
	factory.Register(driverName, func(parameters map[string]interface{}) (backend.Backend, error) {
		params, err := paramsFromMap(parameters)
		if err != nil {
			return nil, err
		}
		return New(params)
	})
}

// Params configures an S3-compatible Backend.
type Params struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKey       string
	SecretKey       string
	ForcePathStyle  bool
	Insecure        bool
	RootDirectory   string
}

func paramsFromMap(m map[string]interface{}) (Params, error) {
	bucket, _ := m["bucket"].(string)
	if bucket == "" {
		return Params{}, fmt.Errorf("%s: \"bucket\" parameter is required", driverName)
	}

	region, _ := m["region"].(string)
	endpoint, _ := m["endpoint"].(string)
	accessKey, _ := m["accesskey"].(string)
	secretKey, _ := m["secretkey"].(string)
	rootDirectory, _ := m["rootdirectory"].(string)
	forcePathStyle, _ := m["forcepathstyle"].(bool)
	insecure, _ := m["insecure"].(bool)

	return Params{
		Bucket:         bucket,
		Region:         region,
		Endpoint:       endpoint,
		AccessKey:      accessKey,
		SecretKey:      secretKey,
		ForcePathStyle: forcePathStyle,
		Insecure:       insecure,
		RootDirectory:  rootDirectory,
	}, nil
}

// Backend is a backend.Backend implementation storing every path as a
// whole S3 object at RootDirectory+path.
type Backend struct {
	s3     s3iface.S3API
	bucket string
	root   string
}

var _ backend.Backend = (*Backend)(nil)

// New constructs a Backend from p, dialing a real AWS session (static
// credentials when given, the default chain otherwise).
func New(p Params) (*Backend, error) {
	if p.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is required", driverName)
	}

	cfg := aws.NewConfig()
	if p.Region != "" {
		cfg = cfg.WithRegion(p.Region)
	}
	if p.Endpoint != "" {
		cfg = cfg.WithEndpoint(p.Endpoint)
	}
	cfg = cfg.WithS3ForcePathStyle(p.ForcePathStyle)
	cfg = cfg.WithDisableSSL(p.Insecure)
	if p.AccessKey != "" && p.SecretKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(p.AccessKey, p.SecretKey, ""))
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: creating session: %w", driverName, err)
	}

	return &Backend{s3: s3.New(sess), bucket: p.Bucket, root: p.RootDirectory}, nil
}

// NewWithClient wraps an already-constructed S3 client, for tests that
// substitute a fake s3iface.S3API.
func NewWithClient(client s3iface.S3API, bucket, root string) *Backend {
	return &Backend{s3: client, bucket: bucket, root: root}
}

func (b *Backend) Name() string { return driverName }

func (b *Backend) key(p string) string {
	return strings.TrimPrefix(path.Join(b.root, p), "/")
}

func isNotFound(err error) bool {
	awsErr, ok := err.(awserr.Error)
	if !ok {
		return false
	}
	switch awsErr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}

func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	_, err := b.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		if isDir, dirErr := b.IsDir(ctx, p); dirErr == nil && isDir {
			return true, nil
		}
		return false, nil
	}
	return false, backend.Error{DriverName: b.Name(), Err: err}
}

func (b *Backend) IsFile(ctx context.Context, p string) (bool, error) {
	_, err := b.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, backend.Error{DriverName: b.Name(), Err: err}
}

func (b *Backend) IsDir(ctx context.Context, p string) (bool, error) {
	prefix := b.key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	out, err := b.s3.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return false, backend.Error{DriverName: b.Name(), Err: err}
	}
	return len(out.Contents) > 0, nil
}

// object is the in-memory Stream handed back by Open, buffering content
// fully so it supports io.Seeker without a round-trip per Seek call.
type object struct {
	ctx    context.Context
	b      *Backend
	key    string
	data   []byte
	pos    int64
	write  bool
	closed bool
}

func (o *object) Read(p []byte) (int, error) {
	if o.pos >= int64(len(o.data)) {
		return 0, io.EOF
	}
	n := copy(p, o.data[o.pos:])
	o.pos += int64(n)
	return n, nil
}

func (o *object) Write(p []byte) (int, error) {
	end := o.pos + int64(len(p))
	if end > int64(len(o.data)) {
		grown := make([]byte, end)
		copy(grown, o.data)
		o.data = grown
	}
	n := copy(o.data[o.pos:end], p)
	o.pos += int64(n)
	return n, nil
}

func (o *object) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = o.pos + offset
	case io.SeekEnd:
		newPos = int64(len(o.data)) + offset
	}
	if newPos < 0 {
		return o.pos, backend.InvalidOffsetError{Path: o.key, Offset: newPos}
	}
	o.pos = newPos
	return o.pos, nil
}

func (o *object) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	if !o.write {
		return nil
	}

	_, err := o.b.s3.PutObjectWithContext(o.ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.b.bucket),
		Key:    aws.String(o.key),
		Body:   bytes.NewReader(o.data),
	})
	if err != nil {
		return backend.Error{DriverName: o.b.Name(), Err: err}
	}
	return nil
}

func (b *Backend) getObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (b *Backend) Open(ctx context.Context, p string, mode backend.Mode) (backend.Stream, error) {
	if isDir, err := b.IsDir(ctx, p); err != nil {
		return nil, err
	} else if isDir {
		return nil, backend.InvalidResourceError{Path: p}
	}

	key := b.key(p)

	switch mode {
	case backend.ModeRead:
		data, err := b.getObject(ctx, key)
		if err != nil {
			return nil, backend.Error{DriverName: b.Name(), Err: err}
		}
		if data == nil {
			return nil, backend.NotFoundError{Path: p}
		}
		return &object{ctx: ctx, b: b, key: key, data: data}, nil

	case backend.ModeWrite:
		return &object{ctx: ctx, b: b, key: key, write: true}, nil

	default: // backend.ModeReadWrite
		data, err := b.getObject(ctx, key)
		if err != nil {
			return nil, backend.Error{DriverName: b.Name(), Err: err}
		}
		return &object{ctx: ctx, b: b, key: key, data: data, write: true}, nil
	}
}

func (b *Backend) ListDir(ctx context.Context, p string, opts backend.ListOptions) ([]string, error) {
	prefix := b.key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	logical := path.Clean("/" + p)

	var out []string
	var continuationToken *string
	for {
		resp, err := b.s3.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, backend.Error{DriverName: b.Name(), Err: err}
		}

		if !opts.DirsOnly {
			for _, obj := range resp.Contents {
				name := strings.TrimPrefix(*obj.Key, prefix)
				if name == "" {
					continue
				}
				out = append(out, matchEntry(logical, name, opts)...)
			}
		}
		if !opts.FilesOnly {
			for _, cp := range resp.CommonPrefixes {
				name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
				if name == "" {
					continue
				}
				out = append(out, matchEntry(logical, name, opts)...)
			}
		}

		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		continuationToken = resp.NextContinuationToken
	}

	if len(out) == 0 {
		if isDir, _ := b.IsDir(ctx, p); !isDir {
			return nil, backend.NotFoundError{Path: p}
		}
	}

	sort.Strings(out)
	return out, nil
}

func matchEntry(logical, name string, opts backend.ListOptions) []string {
	if opts.Wildcard != "" {
		if matched, _ := path.Match(opts.Wildcard, name); !matched {
			return nil
		}
	}
	if opts.Full || opts.Absolute {
		return []string{path.Join(logical, name)}
	}
	return []string{name}
}

func (b *Backend) MakeDir(ctx context.Context, p string, opts backend.MakeDirOptions) error {
	// S3 has no directories; their existence is implicit in object prefixes.
	return nil
}

func (b *Backend) RemoveDir(ctx context.Context, p string, opts backend.RemoveDirOptions) error {
	if path.Clean("/"+p) == "/" {
		return backend.InvalidPathError{Path: p}
	}

	prefix := b.key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var toDelete []*s3.ObjectIdentifier
	var continuationToken *string
	for {
		resp, err := b.s3.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return backend.Error{DriverName: b.Name(), Err: err}
		}
		for _, obj := range resp.Contents {
			toDelete = append(toDelete, &s3.ObjectIdentifier{Key: obj.Key})
		}
		if resp.IsTruncated == nil || !*resp.IsTruncated {
			break
		}
		continuationToken = resp.NextContinuationToken
	}

	if len(toDelete) == 0 {
		if opts.Force {
			return nil
		}
		return backend.NotFoundError{Path: p}
	}

	_, err := b.s3.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.bucket),
		Delete: &s3.Delete{Objects: toDelete},
	})
	if err != nil {
		return backend.Error{DriverName: b.Name(), Err: err}
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, p string) error {
	exists, err := b.IsFile(ctx, p)
	if err != nil {
		return err
	}
	if !exists {
		return backend.NotFoundError{Path: p}
	}

	_, err = b.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		return backend.Error{DriverName: b.Name(), Err: err}
	}
	return nil
}

// Rename copies then deletes, since S3 has no native move. A directory
// source (a non-empty key prefix) is moved key by key.
func (b *Backend) Rename(ctx context.Context, src, dst string) error {
	isFile, err := b.IsFile(ctx, src)
	if err != nil {
		return err
	}
	if !isFile {
		isDir, err := b.IsDir(ctx, src)
		if err != nil {
			return err
		}
		if !isDir {
			return backend.NotFoundError{Path: src}
		}
		return b.renamePrefix(ctx, src, dst)
	}

	return b.moveObject(ctx, b.key(src), b.key(dst))
}

func (b *Backend) moveObject(ctx context.Context, srcKey, dstKey string) error {
	_, err := b.s3.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(b.bucket + "/" + srcKey),
	})
	if err != nil {
		return backend.Error{DriverName: b.Name(), Err: err}
	}

	_, err = b.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return backend.Error{DriverName: b.Name(), Err: err}
	}
	return nil
}

func (b *Backend) renamePrefix(ctx context.Context, src, dst string) error {
	srcPrefix := b.key(src)
	if srcPrefix != "" && !strings.HasSuffix(srcPrefix, "/") {
		srcPrefix += "/"
	}
	dstPrefix := b.key(dst)
	if dstPrefix != "" && !strings.HasSuffix(dstPrefix, "/") {
		dstPrefix += "/"
	}

	var continuationToken *string
	for {
		resp, err := b.s3.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(srcPrefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return backend.Error{DriverName: b.Name(), Err: err}
		}
		for _, obj := range resp.Contents {
			rest := strings.TrimPrefix(*obj.Key, srcPrefix)
			if err := b.moveObject(ctx, *obj.Key, dstPrefix+rest); err != nil {
				return err
			}
		}
		if resp.IsTruncated == nil || !*resp.IsTruncated {
			return nil
		}
		continuationToken = resp.NextContinuationToken
	}
}

func (b *Backend) GetSize(ctx context.Context, p string) (int64, error) {
	out, err := b.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, backend.NotFoundError{Path: p}
		}
		return 0, backend.Error{DriverName: b.Name(), Err: err}
	}
	if out.ContentLength == nil {
		return 0, nil
	}
	return *out.ContentLength, nil
}

type fileInfo struct {
	path    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (fi fileInfo) Path() string            { return fi.path }
func (fi fileInfo) Size() int64             { return fi.size }
func (fi fileInfo) CreatedTime() time.Time  { return fi.modTime }
func (fi fileInfo) ModifiedTime() time.Time { return fi.modTime }
func (fi fileInfo) AccessedTime() time.Time { return fi.modTime }
func (fi fileInfo) IsDir() bool             { return fi.isDir }

func (b *Backend) GetInfo(ctx context.Context, p string) (backend.FileInfo, error) {
	out, err := b.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	if err != nil {
		if !isNotFound(err) {
			return nil, backend.Error{DriverName: b.Name(), Err: err}
		}
		if isDir, dirErr := b.IsDir(ctx, p); dirErr == nil && isDir {
			return fileInfo{path: p, isDir: true}, nil
		}
		return nil, backend.NotFoundError{Path: p}
	}

	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	modTime := time.Time{}
	if out.LastModified != nil {
		modTime = *out.LastModified
	}

	return fileInfo{path: p, size: size, modTime: modTime}, nil
}

// SetTimes is a no-op: S3 objects have no mutable last-modified time
// independent of their content, so there is nothing to set.
func (b *Backend) SetTimes(ctx context.Context, p string, accessed, modified *time.Time) error {
	return nil
}

func (b *Backend) GetMeta(ctx context.Context, name string) (interface{}, error) {
	return nil, backend.NoMetaError{Name: name, DriverName: b.Name()}
}

func (b *Backend) SysPath(ctx context.Context, p string) (string, error) {
	return "", backend.NoSysPathError{Path: p}
}
