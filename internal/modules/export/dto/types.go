package dto

type ExporterInfo struct {
	Name         string
	Version      string
	Enabled      bool
	Binary       string
	Capabilities []string
}

type DoctorResult struct {
	Name            string
	ChecksumValid   bool
	BinaryReachable bool
	LifecycleOK     bool
	Error           string
}

type FormatInfo struct {
	Exporter    string
	ID          string
	Title       string
	Description string
	Extension   string
}

// ExportInput names a format and optionally pins the exporter serving
// it. An empty OutputPath derives the file name from the deck; an
// empty SessionID exports the set currently under review.
type ExportInput struct {
	Format     string
	Exporter   string
	OutputPath string
	SessionID  string
	Cwd        string
	Env        map[string]string
}

type ExportOutput struct {
	Exporter  string
	Format    string
	Path      string
	CardCount int
}
