package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AgentConfig describes one search configuration taking part in a tournament.
type AgentConfig struct {
	ID        int
	Level     string
	Depth     int
	Heuristic string
}

type GameRecord struct {
	ID      int
	Agent1  int // AgentConfig.ID of white
	Agent2  int // AgentConfig.ID of black
	Seed    uint64
	Pairing string
	GameMetric
}

type MoveRecord struct {
	Game int // GameRecord.ID
	MoveMetric
}

type Writer struct {
	baseDir string
}

// NewWriter creates <root>/<name>/<timestamp> and writes every file there.
func NewWriter(root, name string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(root, name, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteAgentConfigs(configs []AgentConfig) error {
	rows := make([][]string, 0, len(configs))
	for _, config := range configs {
		rows = append(rows, []string{
			strconv.Itoa(config.ID),
			config.Level,
			strconv.Itoa(config.Depth),
			config.Heuristic,
		})
	}
	return w.writeCSV("agent_configs.csv", []string{"id", "level", "depth", "heuristic"}, rows)
}

func (w *Writer) WriteGameRecords(records []GameRecord) error {
	header := []string{
		"id", "agent1", "agent2", "pairing", "seed", "starting_player", "winner",
		"white_score", "black_score", "moves", "stalled", "capped", "start_time", "end_time", "duration",
	}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.ID),
			strconv.Itoa(record.Agent1),
			strconv.Itoa(record.Agent2),
			record.Pairing,
			strconv.FormatUint(record.Seed, 10),
			record.StartingPlayer,
			record.Winner,
			strconv.Itoa(record.WhiteScore),
			strconv.Itoa(record.BlackScore),
			strconv.Itoa(record.TotalMoves),
			strconv.FormatBool(record.Stalled),
			strconv.FormatBool(record.Capped),
			record.StartTime.Format(time.RFC3339Nano),
			record.EndTime.Format(time.RFC3339Nano),
			record.Duration.String(),
		})
	}
	return w.writeCSV("game_records.csv", header, rows)
}

func (w *Writer) WriteMoveRecords(records []MoveRecord) error {
	header := []string{
		"game", "step", "player", "move", "gain", "depth", "duration",
		"nodes", "leaves", "cutoffs", "candidates", "excluded", "repetition_reset",
	}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.Game),
			strconv.Itoa(record.Step),
			record.Player,
			record.Move,
			strconv.Itoa(record.Gain),
			strconv.Itoa(record.Depth),
			record.Duration.String(),
			strconv.Itoa(record.Nodes),
			strconv.Itoa(record.Leaves),
			strconv.Itoa(record.Cutoffs),
			strconv.Itoa(record.Candidates),
			strconv.Itoa(record.Excluded),
			strconv.FormatBool(record.RepetitionReset),
		})
	}
	return w.writeCSV("move_records.csv", header, rows)
}

// WriteJSON stores v indented under name.
func (w *Writer) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return w.WriteFile(name, data)
}

func (w *Writer) WriteFile(name string, data []byte) error {
	path := filepath.Join(w.baseDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (w *Writer) writeCSV(name string, header []string, rows [][]string) error {
	path := filepath.Join(w.baseDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s rows: %w", name, err)
	}
	return nil
}
