package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ting-rn/ting-sync/internal/docstore"
)

// version converts firestore time to docstore version.
func version(t time.Time) docstore.Version {
	if t.IsZero() {
		return 0
	}
	return docstore.Version(t.UnixNano())
}

// latest returns the newest update time of snaps. Deleted documents carry no update time,
// their read time is used instead.
func latest(snaps []*firestore.DocumentSnapshot) docstore.Version {
	var v docstore.Version
	for _, snap := range snaps {
		if snap == nil {
			continue
		}

		t := snap.UpdateTime
		if t.IsZero() {
			t = snap.ReadTime
		}

		if sv := version(t); sv > v {
			v = sv
		}
	}
	return v
}

func toDocument(path, id string, snap *firestore.DocumentSnapshot) *docstore.Document {
	d := &docstore.Document{Path: path, ID: id}
	if snap == nil {
		return d
	}

	d.Version = version(snap.ReadTime)
	if snap.Exists() {
		d.Exists = true
		d.Data = snap.Data()
	}

	return d
}

func toDocuments(collection string, snaps []*firestore.DocumentSnapshot) []*docstore.Document {
	out := make([]*docstore.Document, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toDocument(docstore.Join(collection, snap.Ref.ID), snap.Ref.ID, snap))
	}
	return out
}

// fields replaces docstore sentinels with firestore transforms.
func fields(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = value(v)
	}
	return out
}

func updates(data map[string]interface{}) []firestore.Update {
	out := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		out = append(out, firestore.Update{Path: k, Value: value(v)})
	}
	return out
}

func value(v interface{}) interface{} {
	switch v := v.(type) {
	case docstore.Increment:
		return firestore.Increment(int64(v))
	default:
		if docstore.IsServerTimestamp(v) {
			return firestore.ServerTimestamp
		}
		return v
	}
}

// translate maps grpc status codes to docstore errors.
func translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var target error
	switch status.Code(err) {
	case codes.NotFound:
		target = docstore.ErrNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		target = docstore.ErrPermissionDenied
	case codes.Aborted:
		target = docstore.ErrAborted
	case codes.InvalidArgument, codes.FailedPrecondition:
		target = docstore.ErrInvalidQuery
	default:
		return err
	}

	return fmt.Errorf("%w: %s", target, status.Convert(err).Message())
}
