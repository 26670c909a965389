package output

import "time"

// StatusOutput is the result of `jcg status`.
type StatusOutput struct {
	Backend string          `yaml:"backend" json:"backend"`
	Path    string          `yaml:"path,omitempty" json:"path,omitempty"`
	Nodes   map[string]int  `yaml:"nodes" json:"nodes"`
	Reports []ReportSummary `yaml:"reports,omitempty" json:"reports,omitempty"`
}

// ReportSummary is one stored report file.
type ReportSummary struct {
	File      string    `yaml:"file" json:"file"`
	Name      string    `yaml:"name,omitempty" json:"name,omitempty"`
	Hash      string    `yaml:"hash,omitempty" json:"hash,omitempty"`
	ScannedAt time.Time `yaml:"scanned_at,omitempty" json:"scanned_at,omitempty"`
}
