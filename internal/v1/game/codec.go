package game

import (
	"encoding/json"
	"fmt"
)

// Directory encoding of MapAndMeta. Points inside the metadata are written
// as tagged objects {"row", "col", "type": "Point"} so decoders can tell a
// strict Point apart from an ordinary {row, col} pair embedded in messages.
// The encoding round-trips: DecodeMapAndMeta(EncodeMapAndMeta(x)) == x.

const pointTag = "Point"

type taggedPoint struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Type string `json:"type"`
}

type metaWire struct {
	Version          int                        `json:"version"`
	PointsOfInterest map[CellType][]taggedPoint `json:"points_of_interest"`
}

type mapAndMetaWire struct {
	Map  GameMap  `json:"map"`
	Meta metaWire `json:"meta"`
}

// EncodeMapAndMeta serializes a map seed for the directory blob store.
func EncodeMapAndMeta(mm MapAndMeta) ([]byte, error) {
	wire := mapAndMetaWire{
		Map: mm.Map,
		Meta: metaWire{
			Version:          mm.Meta.Version,
			PointsOfInterest: make(map[CellType][]taggedPoint, len(mm.Meta.PointsOfInterest)),
		},
	}
	for ct, points := range mm.Meta.PointsOfInterest {
		tagged := make([]taggedPoint, len(points))
		for i, p := range points {
			tagged[i] = taggedPoint{Row: p.Row, Col: p.Col, Type: pointTag}
		}
		wire.Meta.PointsOfInterest[ct] = tagged
	}
	return json.Marshal(wire)
}

// DecodeMapAndMeta reconstructs a map seed from its directory encoding.
// Metadata points missing the "Point" tag are rejected.
func DecodeMapAndMeta(data []byte) (MapAndMeta, error) {
	var wire mapAndMetaWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return MapAndMeta{}, fmt.Errorf("decode map blob: %w", err)
	}

	mm := MapAndMeta{
		Map: wire.Map,
		Meta: MapMeta{
			Version:          wire.Meta.Version,
			PointsOfInterest: make(map[CellType][]Point, len(wire.Meta.PointsOfInterest)),
		},
	}
	for ct, tagged := range wire.Meta.PointsOfInterest {
		points := make([]Point, len(tagged))
		for i, tp := range tagged {
			if tp.Type != pointTag {
				return MapAndMeta{}, fmt.Errorf("decode map blob: %s point %d is not tagged as Point", ct, i)
			}
			points[i] = Point{Row: tp.Row, Col: tp.Col}
		}
		mm.Meta.PointsOfInterest[ct] = points
	}
	return mm, nil
}
