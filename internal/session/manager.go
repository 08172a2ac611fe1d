package session

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"drowsiness-service/internal/analysis"
	"drowsiness-service/internal/models"
)

var (
	// ErrSessionNotFound сессия с таким ID не существует
	ErrSessionNotFound = errors.New("session not found")
	// ErrQueueFull очередь воркера переполнена
	ErrQueueFull = errors.New("frame queue is full")
	// ErrNotStarted воркеры не запущены
	ErrNotStarted = errors.New("workers are not started")
	// ErrAlreadyStarted повторный запуск воркеров
	ErrAlreadyStarted = errors.New("workers are already started")
	// ErrStopped менеджер остановлен и не принимает кадры
	ErrStopped = errors.New("session manager is stopped")
)

type job struct {
	sessionID string
	frame     models.Frame
}

// Manager хранит сессии и пул воркеров для асинхронной обработки кадров.
// Кадры одной сессии всегда попадают к одному воркеру, поэтому порядок
// внутри сессии сохраняется.
type Manager struct {
	cfg           analysis.Config
	perclosWindow time.Duration
	bufferSize    int
	log           *logrus.Logger
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	queues   []chan job
	stopped  bool
	seq      atomic.Uint64

	resultsChan chan models.FrameResult
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewManager создает менеджер сессий
func NewManager(cfg analysis.Config, perclosWindow time.Duration, bufferSize int, logger *logrus.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = 1
	}

	return &Manager{
		cfg:           cfg,
		perclosWindow: perclosWindow,
		bufferSize:    bufferSize,
		log:           logger,
		now:           time.Now,
		sessions:      make(map[string]*Session),
		resultsChan:   make(chan models.FrameResult, bufferSize),
		stopChan:      make(chan struct{}),
	}, nil
}

// Create открывает новую сессию для источника кадров
func (m *Manager) Create(source string) (models.SessionInfo, error) {
	id := uuid.NewString()

	s, err := newSession(id, m.seq.Add(1), source, m.cfg, m.perclosWindow, m.now())
	if err != nil {
		return models.SessionInfo{}, fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"session_id": id,
		"source":     source,
	}).Info("[session.Create] session opened")

	return s.Info(), nil
}

// Get возвращает сессию по ID
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Info возвращает описание сессии
func (m *Manager) Info(id string) (models.SessionInfo, error) {
	s, err := m.Get(id)
	if err != nil {
		return models.SessionInfo{}, err
	}
	return s.Info(), nil
}

// List возвращает все сессии в порядке создания
func (m *Manager) List() []models.SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].seq < sessions[j].seq
	})

	infos := make([]models.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Len возвращает количество активных сессий
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete завершает сессию
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)

	m.log.WithField("session_id", id).Info("[session.Delete] session closed")
	return nil
}

// Reset сбрасывает состояние анализа сессии
func (m *Manager) Reset(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Reset()

	m.log.WithField("session_id", id).Info("[session.Reset] analyzer state cleared")
	return nil
}

// ProcessSync синхронно анализирует кадр сессии
func (m *Manager) ProcessSync(id string, frame models.Frame) (models.FrameResult, error) {
	s, err := m.Get(id)
	if err != nil {
		return models.FrameResult{}, err
	}
	return s.Process(frame, m.now()), nil
}

// EvictIdle удаляет сессии без кадров дольше maxIdle и возвращает их ID
func (m *Manager) EvictIdle(maxIdle time.Duration) []string {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for id, s := range m.sessions {
		if s.lastActivity().Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}

	if len(evicted) > 0 {
		m.log.WithField("sessions", evicted).Info("[session.EvictIdle] idle sessions closed")
	}
	return evicted
}

// Start запускает воркеры для асинхронной обработки кадров.
// Повторный запуск и запуск после Stop не допускаются.
func (m *Manager) Start(numWorkers int) error {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	perWorker := m.bufferSize / numWorkers
	if perWorker == 0 {
		perWorker = 1
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrStopped
	}
	if m.queues != nil {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.queues = make([]chan job, numWorkers)
	for i := range m.queues {
		m.queues[i] = make(chan job, perWorker)
	}
	queues := m.queues
	m.mu.Unlock()

	for _, q := range queues {
		m.wg.Add(1)
		go m.worker(q)
	}
	return nil
}

// worker горутина для обработки кадров из своей очереди.
// После Stop дорабатывает кадры, принятые до остановки.
func (m *Manager) worker(queue <-chan job) {
	defer m.wg.Done()
	for {
		select {
		case j := <-queue:
			m.process(j)
		case <-m.stopChan:
			for {
				select {
				case j := <-queue:
					m.process(j)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) process(j job) {
	result, err := m.ProcessSync(j.sessionID, j.frame)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"session_id": j.sessionID,
			"error":      err.Error(),
		}).Warn("[session.worker] frame dropped")
		return
	}
	select {
	case m.resultsChan <- result:
	default:
		// Канал результатов переполнен, пропускаем
	}
}

// Submit ставит кадр сессии в очередь ее воркера
func (m *Manager) Submit(id string, frame models.Frame) error {
	if _, err := m.Get(id); err != nil {
		return err
	}

	// Отправка под RLock: Stop не может закрыть прием между проверкой и отправкой
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stopped {
		return ErrStopped
	}
	if len(m.queues) == 0 {
		return ErrNotStarted
	}

	select {
	case m.queues[shard(id, len(m.queues))] <- job{sessionID: id, frame: frame}:
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueLength возвращает количество кадров в очередях
func (m *Manager) QueueLength() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, q := range m.queues {
		n += len(q)
	}
	return n
}

// Results возвращает канал результатов асинхронной обработки
func (m *Manager) Results() <-chan models.FrameResult {
	return m.resultsChan
}

// Stop прекращает прием кадров и ждет завершения воркеров
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		close(m.stopChan)
	})
	m.wg.Wait()
}

func shard(id string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(n))
}
