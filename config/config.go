// Package config decodes the agent's ApplyConfig payload (§3, §6.1) and
// per-bridge descriptors (§3 "Bridge configuration") into the shapes
// the manager package diffs and the conn/bridge packages consume.
// Grounded on original_source/media-proxy/include/mesh/conn.h and
// src/mesh/conn.cc's Config::assign_from_pb/assign_to_pb, which define
// the exact field shape; decoded here with
// github.com/json-iterator/go instead of protobuf, since the agent
// transport in this module is JSON over the §6.1 command stream (see
// SPEC_FULL.md's AMBIENT STACK), the same way the teacher's own
// config/metadata packages reach for jsoniter rather than encoding/json.
package config

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConnType selects which transport-specific sub-fields of Connection
// apply.
type ConnType string

const (
	ConnTypeMultipointGroup ConnType = "multipoint_group"
	ConnTypeST2110          ConnType = "st2110"
	ConnTypeRDMA            ConnType = "rdma"
)

// PayloadType selects which payload sub-fields apply.
type PayloadType string

const (
	PayloadTypeVideo PayloadType = "video"
	PayloadTypeAudio PayloadType = "audio"
)

// ST2110Transport is the transport subtype for a CONN_TYPE_ST2110
// connection.
type ST2110Transport string

const (
	ST2110Transport20 ST2110Transport = "st2110-20"
	ST2110Transport22 ST2110Transport = "st2110-22"
	ST2110Transport30 ST2110Transport = "st2110-30"
)

// MultipointGroupConfig is the CONN_TYPE_GROUP sub-record.
type MultipointGroupConfig struct {
	URN string `json:"urn"`
}

// ST2110Config is the CONN_TYPE_ST2110 sub-record.
type ST2110Config struct {
	RemoteIPAddr string          `json:"remote_ip_addr"`
	RemotePort   uint16          `json:"remote_port"`
	Transport    ST2110Transport `json:"transport"`
	Pacing       string          `json:"pacing"`
	PayloadType  string          `json:"payload_type"`
}

// RDMAConfig is the CONN_TYPE_RDMA sub-record.
type RDMAConfig struct {
	ConnectionMode string `json:"connection_mode"`
	MaxLatencyNS   uint64 `json:"max_latency_ns"`
}

// VideoPayload is the PAYLOAD_TYPE_VIDEO sub-record.
type VideoPayload struct {
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	FPS         uint32 `json:"fps"`
	PixelFormat string `json:"pixel_format"`
}

// AudioPayload is the PAYLOAD_TYPE_AUDIO sub-record.
type AudioPayload struct {
	Channels   uint32 `json:"channels"`
	SampleRate string `json:"sample_rate"`
	Format     string `json:"format"`
	PacketTime string `json:"packet_time"`
}

// ConnectionConfig is a flat descriptor for a single connection's wire
// parameters, matching conn.h's Config struct field-for-field.
type ConnectionConfig struct {
	BufQueueCapacity      uint32 `json:"buf_queue_capacity"`
	MaxPayloadSize        uint32 `json:"max_payload_size"`
	MaxMetadataSize       uint32 `json:"max_metadata_size"`
	CalculatedPayloadSize uint32 `json:"calculated_payload_size"`

	ConnType ConnType `json:"conn_type"`

	MultipointGroup *MultipointGroupConfig `json:"multipoint_group,omitempty"`
	ST2110          *ST2110Config          `json:"st2110,omitempty"`
	RDMA            *RDMAConfig            `json:"rdma,omitempty"`

	PayloadType PayloadType `json:"payload_type"`

	Video *VideoPayload `json:"video,omitempty"`
	Audio *AudioPayload `json:"audio,omitempty"`
}

// Validate checks the union discriminators are internally consistent:
// the transport sub-record matching ConnType and the payload sub-record
// matching PayloadType must be present. Other sub-records that are also
// set are not rejected.
func (c *ConnectionConfig) Validate() error {
	switch c.ConnType {
	case ConnTypeMultipointGroup:
		if c.MultipointGroup == nil {
			return errors.New("conn_type multipoint_group requires multipoint_group fields")
		}
	case ConnTypeST2110:
		if c.ST2110 == nil {
			return errors.New("conn_type st2110 requires st2110 fields")
		}
	case ConnTypeRDMA:
		if c.RDMA == nil {
			return errors.New("conn_type rdma requires rdma fields")
		}
	default:
		return errors.Errorf("unknown conn_type %q", c.ConnType)
	}

	switch c.PayloadType {
	case PayloadTypeVideo:
		if c.Video == nil {
			return errors.New("payload_type video requires video fields")
		}
	case PayloadTypeAudio:
		if c.Audio == nil {
			return errors.New("payload_type audio requires audio fields")
		}
	default:
		return errors.Errorf("unknown payload_type %q", c.PayloadType)
	}
	return nil
}

// Kind values a BridgeConfig selects, re-declared here (rather than
// imported from conn) to keep config free of a dependency on conn;
// manager translates between the two at the point of use.
type BridgeKind string

const (
	BridgeKindTransmitter BridgeKind = "transmitter"
	BridgeKindReceiver    BridgeKind = "receiver"
)

// BridgeType selects the external leaf transport family, §3 "Bridge
// configuration".
type BridgeType string

const (
	BridgeTypeST2110 BridgeType = "st2110"
	BridgeTypeRDMA   BridgeType = "rdma"
)

// BridgeConfig is the flat descriptor parsed from agent commands that
// the BridgesManager uses to build a leaf bridge.
type BridgeConfig struct {
	Type BridgeType `json:"type"`
	Kind BridgeKind `json:"kind"`

	ConnConfig ConnectionConfig `json:"conn_config"`

	RemoteIPAddr string          `json:"remote_ip_addr,omitempty"`
	RemotePort   uint16          `json:"remote_port,omitempty"`
	Transport    ST2110Transport `json:"transport,omitempty"`
	PayloadType  string          `json:"st2110_payload_type,omitempty"`
}

// GroupConfig is one entry of Config.Groups, §4.9 "Input".
type GroupConfig struct {
	ConnConfig ConnectionConfig `json:"conn_config"`
	ConnIDs    []string         `json:"conn_ids"`
	BridgeIDs  []string         `json:"bridge_ids"`
}

// Config is the complete desired-state record delivered by
// ApplyConfig, §4.9 "Input".
type Config struct {
	Groups  map[string]GroupConfig  `json:"groups"`
	Bridges map[string]BridgeConfig `json:"bridges"`
}

// Decode parses a JSON-encoded ApplyConfig payload.
func Decode(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.Groups == nil {
		cfg.Groups = map[string]GroupConfig{}
	}
	if cfg.Bridges == nil {
		cfg.Bridges = map[string]BridgeConfig{}
	}
	return &cfg, nil
}

// Encode serializes a Config back to JSON, the inverse of Decode, used
// by the reference agentclient and by tests.
func Encode(cfg *Config) ([]byte, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return b, nil
}
