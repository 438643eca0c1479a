// Package protocol defines the JSON messages hosts exchange with a Sightline
// server over WebSocket.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeSceneLoad     = "SCENE_LOAD"
	TypeEntityUpsert  = "ENTITY_UPSERT"
	TypeEntityRemove  = "ENTITY_REMOVE"
	TypeMove          = "MOVE"
	TypeCondition     = "CONDITION"
	TypeLighting      = "LIGHTING"
	TypeOverrideSet   = "OVERRIDE_SET"
	TypeOverrideClear = "OVERRIDE_CLEAR"
	TypePerception    = "PERCEPTION"
	TypeRefresh       = "REFRESH"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

type SensesDTO struct {
	Vision           bool `json:"vision"`
	Darkvision       int  `json:"darkvision"` // 0 none, 1 darkvision, 2 greater
	PreciseNonVisual bool `json:"precise_non_visual"`
	Imprecise        bool `json:"imprecise"`
}

type EntityDTO struct {
	ID            string     `json:"id"`
	X             float64    `json:"x"`
	Y             float64    `json:"y"`
	Elevation     *float64   `json:"elevation,omitempty"`
	Size          *int       `json:"size,omitempty"`
	Conditions    []string   `json:"conditions,omitempty"`
	Alliance      string     `json:"alliance,omitempty"`
	Senses        *SensesDTO `json:"senses,omitempty"`
	CoverFeat     bool       `json:"cover_feat,omitempty"`
	CoverOverride bool       `json:"cover_override,omitempty"`
}

type WallDTO struct {
	ID          string   `json:"id"`
	X1          float64  `json:"x1"`
	Y1          float64  `json:"y1"`
	X2          float64  `json:"x2"`
	Y2          float64  `json:"y2"`
	BlocksSight bool     `json:"blocks_sight"`
	DoorOpen    bool     `json:"door_open,omitempty"`
	Bottom      *float64 `json:"bottom,omitempty"`
	Top         *float64 `json:"top,omitempty"`
}

type RegionDTO struct {
	ID      string       `json:"id"`
	CX      *float64     `json:"cx,omitempty"`
	CY      *float64     `json:"cy,omitempty"`
	R       *float64     `json:"r,omitempty"`
	Polygon [][2]float64 `json:"polygon,omitempty"`
	Dim     bool         `json:"dim,omitempty"`  // light regions
	Rank    int          `json:"rank,omitempty"` // darkness regions
}

// SCENE_LOAD (host -> server): replaces the room's scene wholesale.
type SceneLoadMsg struct {
	Type     string      `json:"type"`
	Walls    []WallDTO   `json:"walls"`
	Lights   []RegionDTO `json:"lights"`
	Darkness []RegionDTO `json:"darkness"`
	Entities []EntityDTO `json:"entities"`
}

type EntityUpsertMsg struct {
	Type   string    `json:"type"`
	Entity EntityDTO `json:"entity"`
}

type EntityRemoveMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type MoveMsg struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Elevation *float64 `json:"elevation,omitempty"`
}

type ConditionMsg struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Condition string `json:"condition"`
	Active    bool   `json:"active"`
}

type LightingMsg struct {
	Type     string      `json:"type"`
	Lights   []RegionDTO `json:"lights"`
	Darkness []RegionDTO `json:"darkness"`
}

// OVERRIDE_SET pins a visibility or cover value for one ordered pair.
type OverrideSetMsg struct {
	Type       string  `json:"type"`
	Observer   string  `json:"observer"`
	Target     string  `json:"target"`
	Kind       string  `json:"kind"` // "visibility" or "cover"
	Value      string  `json:"value"`
	Source     string  `json:"source,omitempty"`
	TTLSeconds float64 `json:"ttl_seconds,omitempty"` // 0 means no expiry
}

type OverrideClearMsg struct {
	Type     string `json:"type"`
	Observer string `json:"observer"`
	Target   string `json:"target"`
	Kind     string `json:"kind"`
}

type PairDTO struct {
	Observer      string `json:"observer"`
	Target        string `json:"target"`
	Visibility    string `json:"visibility"`
	Cover         string `json:"cover"`
	LOS           bool   `json:"los"`
	OverrideStale bool   `json:"override_stale,omitempty"`
}

// PERCEPTION (server -> host): snapshot of every computed pair.
type PerceptionMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Pairs           []PairDTO `json:"pairs"`
}

// REFRESH (server -> host): fired after every batch pass, even when no
// pair's discrete state changed.
type RefreshMsg struct {
	Type    string   `json:"type"`
	Changed []string `json:"changed"`
}
