package memory

import (
	"encoding/json"
	"fmt"
)

// Snapshot bucket names used by the durable backends.
const (
	BucketKitties  = "kitties"
	BucketListings = "listings"
	BucketBalances = "balances"
	BucketMeta     = "meta"
)

// Buckets lists every bucket in write order.
var Buckets = []string{BucketKitties, BucketListings, BucketBalances, BucketMeta}

// EncodeBucket marshals one bucket of the snapshot as JSON.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch bucket {
	case BucketKitties:
		data, err = json.Marshal(s.Kitties)
	case BucketListings:
		data, err = json.Marshal(s.Listings)
	case BucketBalances:
		data, err = json.Marshal(s.Balances)
	case BucketMeta:
		data, err = json.Marshal(s.Meta)
	default:
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return data, nil
}

// DecodeBucket unmarshals payload into the matching snapshot field. Unknown
// buckets are ignored so older databases with extra rows still load.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketKitties:
		target = &s.Kitties
	case BucketListings:
		target = &s.Listings
	case BucketBalances:
		target = &s.Balances
	case BucketMeta:
		target = &s.Meta
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
