package spaceflake

// GeneratorSettings configures the package level Generate and GenerateAt.
type GeneratorSettings struct {
	// BaseEpoch is the unix millisecond reference time, EPOCH by default.
	BaseEpoch uint64
	NodeID    uint64
	WorkerID  uint64
	// Sequence is used as is when non zero, otherwise a random sequence is picked.
	Sequence uint64
}

// NewGeneratorSettings returns {EPOCH, 0, 0, 0}.
func NewGeneratorSettings() GeneratorSettings {
	return GeneratorSettings{BaseEpoch: EPOCH}
}

// NewGeneratorSettingsFor returns default settings for the given node and worker.
func NewGeneratorSettingsFor(nodeID, workerID uint64) (GeneratorSettings, error) {
	s := NewGeneratorSettings()
	s.NodeID = nodeID
	s.WorkerID = workerID
	if err := s.Validate(); err != nil {
		return GeneratorSettings{}, err
	}
	return s, nil
}

// Validate checks the ranges of the id fields. Time related checks happen when an id
// is generated.
func (s GeneratorSettings) Validate() error {
	if err := validateNodeID(s.NodeID); err != nil {
		return err
	}
	if err := validateWorkerID(s.WorkerID); err != nil {
		return err
	}
	return validateSequence(s.Sequence)
}

// BulkGeneratorSettings configures the package level BulkGenerate.
type BulkGeneratorSettings struct {
	Amount    int
	BaseEpoch uint64
}

func NewBulkGeneratorSettings(amount int) BulkGeneratorSettings {
	return BulkGeneratorSettings{Amount: amount, BaseEpoch: EPOCH}
}
