// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package dumpio reads and writes message dumps and exported scan results.
// A location is a local path, a file:// URI, gs://bucket/object or
// s3://bucket/key. Locations ending in .zst are zstd compressed
// transparently.
package dumpio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config locates the S3-compatible service used for s3:// locations.
type S3Config struct {
	Endpoint        string // host:port
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// S3ConfigFromEnv reads HYENA_S3_ENDPOINT, HYENA_S3_INSECURE and the usual
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY variables.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Endpoint:        os.Getenv("HYENA_S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		UseSSL:          os.Getenv("HYENA_S3_INSECURE") == "",
	}
}

// ErrS3Disabled is returned for s3:// locations when no endpoint is set.
var ErrS3Disabled = errors.New("dumpio: s3 endpoint not configured")

// Location is a parsed dump location.
type Location struct {
	Scheme string // "file", "gs" or "s3"
	Bucket string
	Path   string
}

// Compressed reports whether the location holds zstd data.
func (l Location) Compressed() bool { return strings.HasSuffix(l.Path, ".zst") }

func (l Location) String() string {
	if l.Scheme == "file" {
		return l.Path
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Path
}

// Parse interprets uri. Strings without a scheme are local paths.
func Parse(uri string) (Location, error) {
	if !strings.Contains(uri, "://") {
		if uri == "" {
			return Location{}, errors.New("dumpio: empty location")
		}
		return Location{Scheme: "file", Path: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("dumpio: %w", err)
	}
	switch u.Scheme {
	case "file":
		return Location{Scheme: "file", Path: u.Path}, nil
	case "gs", "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("dumpio: %s needs a bucket and an object name", uri)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Path: key}, nil
	}
	return Location{}, fmt.Errorf("dumpio: unsupported scheme %q", u.Scheme)
}

// IO opens locations. The zero value handles local files and gs://
// locations with application default credentials.
type IO struct {
	S3 S3Config
}

// Default is an IO configured from the environment.
func Default() *IO { return &IO{S3: S3ConfigFromEnv()} }

// Open returns a reader for uri, decompressing .zst locations.
func (d *IO) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	var rc io.ReadCloser
	switch loc.Scheme {
	case "file":
		rc, err = os.Open(loc.Path)
	case "gs":
		rc, err = openGCS(ctx, loc)
	case "s3":
		rc, err = d.openS3(ctx, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("dumpio: open %s: %w", loc, err)
	}
	if !loc.Compressed() {
		return rc, nil
	}
	dec, err := zstd.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("dumpio: zstd %s: %w", loc, err)
	}
	return &zstdReader{dec: dec, src: rc}, nil
}

// Create returns a writer for uri, compressing .zst locations. The data
// is only guaranteed to be stored once Close returns nil.
func (d *IO) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	var wc io.WriteCloser
	switch loc.Scheme {
	case "file":
		wc, err = os.Create(loc.Path)
	case "gs":
		wc, err = createGCS(ctx, loc)
	case "s3":
		wc, err = d.createS3(ctx, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("dumpio: create %s: %w", loc, err)
	}
	if !loc.Compressed() {
		return wc, nil
	}
	enc, err := zstd.NewWriter(wc)
	if err != nil {
		wc.Close()
		return nil, fmt.Errorf("dumpio: zstd %s: %w", loc, err)
	}
	return &zstdWriter{enc: enc, dst: wc}, nil
}

// ReadFile reads the whole content at uri.
func (d *IO) ReadFile(ctx context.Context, uri string) ([]byte, error) {
	rc, err := d.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// WriteFile replaces the content at uri with data.
func (d *IO) WriteFile(ctx context.Context, uri string, data []byte) error {
	wc, err := d.Create(ctx, uri)
	if err != nil {
		return err
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return err
	}
	return wc.Close()
}

type zstdReader struct {
	dec *zstd.Decoder
	src io.Closer
}

func (z *zstdReader) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReader) Close() error {
	z.dec.Close()
	return z.src.Close()
}

type zstdWriter struct {
	enc *zstd.Encoder
	dst io.WriteCloser
}

func (z *zstdWriter) Write(p []byte) (int, error) { return z.enc.Write(p) }

func (z *zstdWriter) Close() error {
	err := z.enc.Close()
	if cerr := z.dst.Close(); err == nil {
		err = cerr
	}
	return err
}

// closers closes the object handle before the client that produced it.
type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	err := r.Reader.Close()
	r.client.Close()
	return err
}

type gcsWriter struct {
	*storage.Writer
	client *storage.Client
}

func (w *gcsWriter) Close() error {
	err := w.Writer.Close()
	w.client.Close()
	return err
}

func openGCS(ctx context.Context, loc Location) (io.ReadCloser, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	r, err := client.Bucket(loc.Bucket).Object(loc.Path).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &gcsReader{Reader: r, client: client}, nil
}

func createGCS(ctx context.Context, loc Location) (io.WriteCloser, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	w := client.Bucket(loc.Bucket).Object(loc.Path).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	return &gcsWriter{Writer: w, client: client}, nil
}

func (d *IO) s3Client() (*minio.Client, error) {
	if d.S3.Endpoint == "" {
		return nil, ErrS3Disabled
	}
	mc, err := minio.New(d.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(d.S3.AccessKeyID, d.S3.SecretAccessKey, ""),
		Secure: d.S3.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return mc, nil
}

func (d *IO) openS3(ctx context.Context, loc Location) (io.ReadCloser, error) {
	mc, err := d.s3Client()
	if err != nil {
		return nil, err
	}
	obj, err := mc.GetObject(ctx, loc.Bucket, loc.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing object now.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// s3Writer streams writes into a PutObject call of unknown size.
type s3Writer struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3Writer) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *s3Writer) Close() error {
	w.pw.Close()
	return <-w.done
}

func (d *IO) createS3(ctx context.Context, loc Location) (io.WriteCloser, error) {
	mc, err := d.s3Client()
	if err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := mc.PutObject(ctx, loc.Bucket, loc.Path, pr, -1,
			minio.PutObjectOptions{ContentType: "application/octet-stream"})
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}
