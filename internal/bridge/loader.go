package bridge

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

// LoadCandidates reads a candidate file, choosing the parser by extension:
// .yaml/.yml for the native format, anything else for the association CSV
// produced by the upstream split-coordinate pipeline.
func LoadCandidates(path string) ([]Candidate, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return LoadCandidatesYAML(path)
	}
	return LoadCandidatesCSV(path)
}

// yamlFile mirrors the hand-maintained candidate list format
type yamlFile struct {
	Candidates []yamlCandidate `yaml:"candidates"`
}

type yamlCandidate struct {
	BridgeID      string      `yaml:"bridge_id"`
	SeedWayID     int64       `yaml:"seed_way_id,omitempty"`
	Points        []yamlPoint `yaml:"points"`
	WaysInBetween []int64     `yaml:"ways_in_between,omitempty"`
}

type yamlPoint struct {
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
	WayID   int64   `yaml:"way_id,omitempty"`
	Missing bool    `yaml:"missing,omitempty"`
}

// LoadCandidatesYAML parses the YAML candidate format
func LoadCandidatesYAML(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate file: %w", err)
	}

	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse candidate YAML: %w", err)
	}

	candidates := make([]Candidate, 0, len(file.Candidates))
	for i, yc := range file.Candidates {
		if len(yc.Points) < 1 || len(yc.Points) > 2 {
			return nil, fmt.Errorf("candidate %d (%s): need 1 or 2 points, got %d", i, yc.BridgeID, len(yc.Points))
		}
		c := Candidate{
			BridgeID:  yc.BridgeID,
			SeedWayID: yc.SeedWayID,
			Chain:     yc.WaysInBetween,
		}
		for _, p := range yc.Points {
			c.Endpoints = append(c.Endpoints, Endpoint{
				Point:   orb.Point{p.Lon, p.Lat},
				WayID:   p.WayID,
				Missing: p.Missing,
			})
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Association CSV column layout, as written by the upstream split-coordinate
// pipeline. A lat/lon pair of -1,-1 is the legacy missing-endpoint sentinel.
const (
	colOsmID = iota
	colBridgeID
	colBridgeCoordinate
	colBridgeLength
	colFirstLat
	colFirstLon
	colFirstWayID
	colWaysBetweenForward
	colSecondLat
	colSecondLon
	colSecondWayID
	colWaysBetweenBackward
	columnCount
)

// LoadCandidatesCSV parses the association CSV format
func LoadCandidatesCSV(path string) ([]Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open candidate file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse candidate CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("candidate CSV %s has no data rows", path)
	}

	var candidates []Candidate
	for i, rec := range records[1:] { // skip header
		c, err := parseCSVRow(rec)
		if err != nil {
			return nil, fmt.Errorf("candidate CSV row %d: %w", i+2, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func parseCSVRow(rec []string) (Candidate, error) {
	if len(rec) < columnCount {
		return Candidate{}, fmt.Errorf("expected %d columns, got %d", columnCount, len(rec))
	}

	first, err := parseCSVEndpoint(rec[colFirstLat], rec[colFirstLon], rec[colFirstWayID])
	if err != nil {
		return Candidate{}, fmt.Errorf("first endpoint: %w", err)
	}
	second, err := parseCSVEndpoint(rec[colSecondLat], rec[colSecondLon], rec[colSecondWayID])
	if err != nil {
		return Candidate{}, fmt.Errorf("second endpoint: %w", err)
	}

	chain := parseWayList(rec[colWaysBetweenForward])
	chain = append(chain, parseWayList(rec[colWaysBetweenBackward])...)

	var seed int64
	if s := strings.TrimSpace(rec[colOsmID]); s != "" && s != "None" {
		seed, _ = strconv.ParseInt(s, 10, 64)
	}

	return Candidate{
		BridgeID:  strings.TrimSpace(rec[colBridgeID]),
		SeedWayID: seed,
		Endpoints: []Endpoint{first, second},
		Chain:     chain,
	}, nil
}

func parseCSVEndpoint(latStr, lonStr, wayStr string) (Endpoint, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid latitude %q: %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid longitude %q: %w", lonStr, err)
	}

	// Legacy sentinel for an endpoint the pipeline could not place
	if lat == -1 && lon == -1 {
		return Endpoint{Missing: true}, nil
	}

	var wayID int64
	ws := strings.TrimSpace(wayStr)
	if ws != "" && ws != "None" && ws != "-1" {
		wayID, err = strconv.ParseInt(ws, 10, 64)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid way id %q: %w", wayStr, err)
		}
	}

	return Endpoint{
		Point: orb.Point{lon, lat},
		WayID: wayID,
	}, nil
}

// parseWayList parses the bracketed id list the upstream pipeline writes,
// e.g. "[123, 456]". "None" and empty mean no chain.
func parseWayList(s string) []int64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "[]" {
		return nil
	}
	s = strings.Trim(s, "[]")

	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
