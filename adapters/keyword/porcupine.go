package keyword

import (
	"fmt"
	"sync"

	porcupine "github.com/Picovoice/porcupine/binding/go/v3"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/domain"
	"github.com/satriahrh/mirrorvoice/domain/repositories"
)

// PorcupineConfig selects the wake word model. KeywordPath points to a custom
// .ppn file; without it BuiltInKeyword is used.
type PorcupineConfig struct {
	AccessKey      string
	KeywordPath    string
	BuiltInKeyword string
	ModelPath      string
	Sensitivity    float32
}

// PorcupineSpotter creates Porcupine detectors. Each detector owns a native
// engine instance.
type PorcupineSpotter struct {
	config PorcupineConfig
	logger *zap.Logger
}

var _ repositories.KeywordSpotter = (*PorcupineSpotter)(nil)

func NewPorcupineSpotter(config PorcupineConfig, logger *zap.Logger) (*PorcupineSpotter, error) {
	if config.AccessKey == "" {
		return nil, fmt.Errorf("porcupine access key is required")
	}
	if config.KeywordPath == "" && config.BuiltInKeyword == "" {
		config.BuiltInKeyword = string(porcupine.PORCUPINE)
		logger.Info("Using built-in keyword", zap.String("keyword", config.BuiltInKeyword))
	}
	if config.Sensitivity <= 0 || config.Sensitivity > 1 {
		config.Sensitivity = 0.5
		logger.Info("Using default sensitivity", zap.Float32("sensitivity", config.Sensitivity))
	}
	return &PorcupineSpotter{config: config, logger: logger}, nil
}

// Open initializes a new engine instance
func (p *PorcupineSpotter) Open() (repositories.KeywordDetector, error) {
	engine := porcupine.Porcupine{
		AccessKey:     p.config.AccessKey,
		ModelPath:     p.config.ModelPath,
		Sensitivities: []float32{p.config.Sensitivity},
	}
	if p.config.KeywordPath != "" {
		engine.KeywordPaths = []string{p.config.KeywordPath}
	} else {
		engine.BuiltInKeywords = []porcupine.BuiltInKeyword{porcupine.BuiltInKeyword(p.config.BuiltInKeyword)}
	}

	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize porcupine: %w", domain.ErrDevice, err)
	}

	p.logger.Debug("Porcupine initialized",
		zap.Int("frameLength", porcupine.FrameLength),
		zap.Int("sampleRate", porcupine.SampleRate))

	return &porcupineDetector{engine: &engine}, nil
}

type porcupineDetector struct {
	mu       sync.Mutex
	engine   *porcupine.Porcupine
	released bool
}

func (d *porcupineDetector) FrameLength() int {
	return porcupine.FrameLength
}

func (d *porcupineDetector) SampleRate() int {
	return porcupine.SampleRate
}

func (d *porcupineDetector) Process(frame []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return -1, fmt.Errorf("porcupine detector released")
	}
	return d.engine.Process(frame)
}

// Release frees the native engine. It is safe to call more than once.
func (d *porcupineDetector) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return nil
	}
	d.released = true
	return d.engine.Delete()
}
