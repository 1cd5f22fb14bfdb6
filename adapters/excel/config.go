package excel

// ReaderConfig holds configuration for file-based triangle sources
type ReaderConfig struct {
	// Sheet is the worksheet read from XLSX workbooks; empty means the first sheet
	Sheet string `json:"sheet"`
}

// DefaultReaderConfig returns sensible defaults for file processing
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{}
}
