// Package types holds the normalised cloud-resource model shared by the
// adapter, the alias resolver and the orchestrator. These are per-request
// views; nothing here is persisted.
package types

import "time"

// StateRunning is the instance lifecycle state visible to the alias resolver.
const StateRunning = "running"

// Instance is a normalised compute instance.
type Instance struct {
	ID         string            `json:"id"`
	DNSName    string            `json:"dns_name"`
	State      string            `json:"state"`
	Type       string            `json:"instance_type"`
	AZ         string            `json:"az"`
	LaunchTime time.Time         `json:"launch_time"`
	Tags       map[string]string `json:"tags"`
}

// Name returns the user-supplied Name tag, or "" when untagged.
func (i Instance) Name() string {
	return i.Tags["Name"]
}

// Running reports whether the instance is in the running state.
func (i Instance) Running() bool {
	return i.State == StateRunning
}

// ReservedInstance is a prepaid capacity reservation.
type ReservedInstance struct {
	ID         string  `json:"id"`
	FixedPrice float64 `json:"fixed_price"`
	Type       string  `json:"instance_type"`
	State      string  `json:"state"`
	AZ         string  `json:"az"`
}

// SpotRequest is a bid for spot capacity. InstanceID is empty until the
// request is fulfilled.
type SpotRequest struct {
	ID          string  `json:"id"`
	Price       float64 `json:"price"`
	ImageID     string  `json:"image_id"`
	Type        string  `json:"instance_type"`
	RequestType string  `json:"request_type"`
	Status      string  `json:"status"`
	InstanceID  string  `json:"instance_id,omitempty"`
}

// Image is a machine image owned by the tenant.
type Image struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	State       string   `json:"state"`
	SnapshotIDs []string `json:"snapshot_ids"`
}

// Volume is a block-storage volume.
type Volume struct {
	ID    string            `json:"id"`
	AZ    string            `json:"az"`
	Size  int32             `json:"size_gib"`
	IOPS  int32             `json:"iops"`
	State string            `json:"state"`
	Tags  map[string]string `json:"tags"`
}

// Name returns the volume's Name tag, or "" when untagged.
func (v Volume) Name() string {
	return v.Tags["Name"]
}

// Snapshot is a point-in-time copy of a volume.
type Snapshot struct {
	ID         string            `json:"id"`
	VolumeSize int32             `json:"volume_size_gib"`
	State      string            `json:"state"`
	Progress   string            `json:"progress"`
	Tags       map[string]string `json:"tags"`
}

// Name returns the snapshot's Name tag, or "" when untagged.
func (s Snapshot) Name() string {
	return s.Tags["Name"]
}

// RepositoryImage is a pushed container image.
type RepositoryImage struct {
	Repository string    `json:"repository"`
	Digest     string    `json:"digest"`
	Tags       []string  `json:"tags"`
	PushedAt   time.Time `json:"pushed_at"`
	SizeBytes  int64     `json:"size_bytes"`
}

// KeyPair is an SSH key pair registered with the provider.
type KeyPair struct {
	Name        string `json:"name"`
	Fingerprint string `json:"fingerprint"`
}

// User is an IAM user.
type User struct {
	ARN       string            `json:"arn"`
	CreatedAt time.Time         `json:"created_at"`
	ID        string            `json:"user_id"`
	Name      string            `json:"name"`
	Tags      map[string]string `json:"tags"`
}

// Group is an IAM group.
type Group struct {
	ARN       string    `json:"arn"`
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"group_id"`
	Name      string    `json:"name"`
}

// AccessKeyMetadata describes an existing access key. The secret is never
// part of a listing.
type AccessKeyMetadata struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessKey is a freshly created access key. Secret is surfaced exactly
// once, at creation.
type AccessKey struct {
	ID        string    `json:"id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
	Secret    string    `json:"secret"`
	Status    string    `json:"status"`
}

// DNSRecord is an A record in a hosted zone.
type DNSRecord struct {
	ZoneID string `json:"zone_id"`
	Name   string `json:"name"`
	IP     string `json:"ip"`
}

// Region is a provider region.
type Region struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// SecurityGroup is a provider firewall group.
type SecurityGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
