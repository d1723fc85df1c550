// Copyright 2025 LandmarkLens
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package archive uploads classified photos to a Google Cloud Storage
// bucket for later model-quality review. Archival is strictly
// best-effort: it runs after the response is decided and its failures
// are logged, never surfaced to the client.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Archiver writes photos to one GCS bucket. A nil *Archiver is a valid
// no-op, which is how deployments without a bucket run.
type Archiver struct {
	client *storage.Client
	bucket string
}

// New creates an Archiver for the given bucket. Credentials come from
// the supplied options or Application Default Credentials.
func New(ctx context.Context, bucket string, opts ...option.ClientOption) (*Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: creating storage client: %w", err)
	}

	return &Archiver{client: client, bucket: bucket}, nil
}

// ObjectName builds the archive path for one photo: day-partitioned so
// lifecycle rules can expire old prefixes cheaply.
func ObjectName(dayKey, userID, requestID string) string {
	return fmt.Sprintf("photos/%s/%s/%s.jpg", dayKey, userID, requestID)
}

// Store uploads one photo. Callers run it in a goroutine; the bounded
// timeout keeps a slow bucket from pinning goroutines forever.
func (a *Archiver) Store(ctx context.Context, objectName string, image []byte, contentType string) error {
	if a == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(image); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive: writing %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: finalizing %s: %w", objectName, err)
	}
	return nil
}

// StoreAsync uploads in the background and logs failures.
func (a *Archiver) StoreAsync(objectName string, image []byte, contentType string) {
	if a == nil {
		return
	}

	// Copy: the caller's buffer may be reused once the handler returns.
	img := bytes.Clone(image)

	go func() {
		if err := a.Store(context.Background(), objectName, img, contentType); err != nil {
			log.Printf("[ARCHIVE] %v", err)
		}
	}()
}

// Close releases the underlying client.
func (a *Archiver) Close() error {
	if a == nil {
		return nil
	}
	return a.client.Close()
}
