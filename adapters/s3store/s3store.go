// Package s3store implements store.MeshStore against an S3 bucket: each
// MeshedArea and its attached WeatheredMesh are msgpack-encoded, zstd
// compressed and stored as a pair of objects keyed by the area ID. It is a
// reference adapter for deployments that need mesh/weather state to
// survive past a single process's LRU cache.
package s3store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/store"
	"github.com/sailroute/sailroute/weather"
)

// Store is a store.MeshStore backed by an S3 bucket.
type Store struct {
	Client *s3.Client
	Bucket string
}

func New(client *s3.Client, bucket string) *Store {
	return &Store{Client: client, Bucket: bucket}
}

func meshKey(id mesh.MeshedAreaId) string    { return fmt.Sprintf("mesh/%s.msgpack.zst", id) }
func weatherKey(id mesh.MeshedAreaId) string { return fmt.Sprintf("weather/%s.msgpack.zst", id) }

func (s *Store) putObject(ctx context.Context, key string, obj any) error {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(zw).Encode(obj); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	return err
}

func (s *Store) getObject(ctx context.Context, key string, obj any) error {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return store.ErrNotFound
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return err
	}

	zr, err := zstd.NewReader(bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer zr.Close()

	return msgpack.NewDecoder(zr).Decode(obj)
}

func (s *Store) Put(area *mesh.MeshedArea) error {
	ctx := context.Background()
	return s.putObject(ctx, meshKey(area.ID), area)
}

// Get decodes the MeshedArea stored under id. An object whose FormatVersion
// predates mesh.FormatVersion is treated as a cache miss: the encoding on
// disk may not even unmarshal cleanly into the current struct, let alone
// describe a mesh the router can walk.
func (s *Store) Get(id mesh.MeshedAreaId) (*mesh.MeshedArea, error) {
	var area mesh.MeshedArea
	if err := s.getObject(context.Background(), meshKey(id), &area); err != nil {
		return nil, err
	}
	if area.FormatVersion != mesh.FormatVersion {
		return nil, store.ErrNotFound
	}
	return &area, nil
}

func (s *Store) AttachWeather(id mesh.MeshedAreaId, wm *weather.WeatheredMesh) error {
	return s.putObject(context.Background(), weatherKey(id), wm)
}

// GetWeather decodes the WeatheredMesh stored under id, subject to the same
// FormatVersion cache-miss check as Get.
func (s *Store) GetWeather(id mesh.MeshedAreaId) (*weather.WeatheredMesh, error) {
	var wm weather.WeatheredMesh
	if err := s.getObject(context.Background(), weatherKey(id), &wm); err != nil {
		return nil, err
	}
	if wm.FormatVersion != weather.FormatVersion {
		return nil, store.ErrNotFound
	}
	return &wm, nil
}

var _ store.MeshStore = (*Store)(nil)
