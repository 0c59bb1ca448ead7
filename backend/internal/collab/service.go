package collab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"richCollab/backend/internal/ot/apply"
	"richCollab/backend/internal/ot/doc"
	"richCollab/backend/internal/ot/op"
	"richCollab/backend/internal/store"
)

// 协作引擎接口
type Service interface {
	// Submit 应用一个已经针对 baseRevision 完成变换的操作。
	// 失败时文档和版本号都不变。
	Submit(ctx context.Context, docID string, authorID uint64,
		baseRevision uint64, clientID string, clientSeq uint64,
		o op.Op) (AppliedOp, error)

	CurrentRevision(ctx context.Context, docID string) (uint64, error)

	LoadDocument(ctx context.Context, docID string) (doc.Span, uint64, error)

	// 用于握手/追平
	OpsSince(ctx context.Context, docID string, fromRevision uint64, limit int) ([]AppliedOp, error)

	SaveSnapshot(ctx context.Context, docID string) error

	GetDocumentID(ctx context.Context, title string) (string, error)
	CreateDocument(ctx context.Context, ownerID uint64, title string) (string, error)
}

// 快照存储接口
type SnapshotStore interface {
	SaveDocumentSnapshot(ctx context.Context, docID string, rev uint64, span doc.Span) error
	LoadLatestSnapshot(ctx context.Context, docID string) (doc.Span, uint64, bool, error)
}

type DocumentStore interface {
	GetDocumentID(ctx context.Context, title string) (string, error)
	CreateDocument(ctx context.Context, ownerID uint64, title string) (string, error)
	DocumentExists(ctx context.Context, docID string) (bool, error)
}

// 快照缓存接口，payload 是 snapshotRecord 的 JSON
type SnapshotCache interface {
	Get(ctx context.Context, docID string, fetch func(ctx context.Context) ([]byte, bool, error)) ([]byte, bool, error)
	Set(ctx context.Context, docID string, payload []byte) error
}

type AppliedOp struct {
	OperationId string      `json:"operationId"` // 本次操作的唯一ID（用于幂等/追踪）
	Revision    uint64      `json:"revision"`    // 应用后的版本号
	AuthorId    uint64      `json:"authorId"`
	ClientId    string      `json:"clientId"`
	ClientSeq   uint64      `json:"clientSeq"`
	Op          op.Op       `json:"op"`
	Trace       apply.Trace `json:"trace"`
	AppliedAt   time.Time   `json:"appliedAt"`
}

var (
	ErrRevisionConflict      = errors.New("REVISION_CONFLICT")
	ErrDuplicateOrOutOfOrder = errors.New("DUPLICATE_OR_OUT_OF_ORDER")
	ErrHistoryTrimmed        = errors.New("HISTORY_TRIMMED")
	ErrDocumentNotFound      = store.ErrDocumentNotFound
	ErrStoreNotInitialized   = errors.New("store not initialized")
)

// 事件入队的最长等待时间，超时丢弃
var EnqueueTimeout = 50 * time.Millisecond

type snapshotRecord struct {
	Revision uint64   `json:"revision"`
	Content  doc.Span `json:"content"`
}

type docState struct {
	mu       sync.RWMutex
	revision uint64
	opsRing  []AppliedOp
	// 去重窗口：记录某 clientId 最近的最大 clientSeq
	lastSeqByClient map[string]uint64
	buf             Buffer
}

// 内存实现：持有已加载文档的状态，首次访问时从缓存/快照恢复
type InMemoryService struct {
	mu      sync.RWMutex
	docs    map[string]*docState
	ringCap int

	snapshots  SnapshotStore
	documents  DocumentStore
	cache      SnapshotCache
	dispatcher EventDispatcher
}

// NewInMemoryService 返回一个满足 Service 接口的实例，依赖可以为 nil。
func NewInMemoryService(snapshots SnapshotStore, documents DocumentStore, cache SnapshotCache, dispatcher EventDispatcher, ringCap int) Service {
	if ringCap <= 0 {
		ringCap = 1024
	}
	return &InMemoryService{
		docs:       make(map[string]*docState),
		ringCap:    ringCap,
		snapshots:  snapshots,
		documents:  documents,
		cache:      cache,
		dispatcher: dispatcher,
	}
}

// loadSnapshot 先查缓存，未命中回源快照表
func (s *InMemoryService) loadSnapshot(ctx context.Context, docID string) (snapshotRecord, bool, error) {
	fetch := func(ctx context.Context) ([]byte, bool, error) {
		if s.snapshots == nil {
			return nil, false, nil
		}
		span, rev, found, err := s.snapshots.LoadLatestSnapshot(ctx, docID)
		if err != nil || !found {
			return nil, false, err
		}
		b, err := json.Marshal(snapshotRecord{Revision: rev, Content: span})
		return b, err == nil, err
	}

	var (
		payload []byte
		found   bool
		err     error
	)
	if s.cache != nil {
		payload, found, err = s.cache.Get(ctx, docID, fetch)
	} else {
		payload, found, err = fetch(ctx)
	}
	if err != nil || !found {
		return snapshotRecord{}, false, err
	}
	var rec snapshotRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return snapshotRecord{}, false, fmt.Errorf("decode snapshot of %s: %w", docID, err)
	}
	return rec, true, nil
}

// 获取或恢复指定文档的状态
func (s *InMemoryService) getOrLoadDoc(ctx context.Context, docID string) (*docState, error) {
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	rec, found, err := s.loadSnapshot(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !found && s.documents != nil {
		exists, err := s.documents.DocumentExists(ctx, docID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrDocumentNotFound
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// 并发加载时以先放入的为准
	if ds = s.docs[docID]; ds != nil {
		return ds, nil
	}
	ds = &docState{
		revision:        rec.Revision,
		lastSeqByClient: make(map[string]uint64),
		opsRing:         make([]AppliedOp, 0, s.ringCap),
		buf:             NewSpanBuffer(rec.Content),
	}
	s.docs[docID] = ds
	loadedDocuments.Inc()
	return ds, nil
}

// 提交操作（InMemoryService 实现）
func (s *InMemoryService) Submit(ctx context.Context, docID string, authorID uint64, baseRevision uint64, clientID string, clientSeq uint64, o op.Op) (AppliedOp, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return AppliedOp{}, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()

	// 幂等/去重：同一 clientId 的序号必须递增
	if last, ok := ds.lastSeqByClient[clientID]; ok && clientSeq <= last {
		opsRejectedTotal.WithLabelValues("duplicate").Inc()
		return AppliedOp{}, ErrDuplicateOrOutOfOrder
	}
	// 版本校验：操作必须已经变换到当前版本
	if baseRevision != ds.revision {
		opsRejectedTotal.WithLabelValues("conflict").Inc()
		return AppliedOp{}, ErrRevisionConflict
	}

	start := time.Now()
	trace, err := ds.buf.Apply(o)
	applyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "malformed"
		if errors.Is(err, apply.ErrTooDeep) {
			reason = "too_deep"
		}
		opsRejectedTotal.WithLabelValues(reason).Inc()
		log.Printf("reject op doc=%s rev=%d client=%s seq=%d: %v", docID, ds.revision, clientID, clientSeq, err)
		return AppliedOp{}, fmt.Errorf("doc %s rev %d: %w", docID, ds.revision, err)
	}

	// 推进版本
	ds.revision++
	appliedOp := AppliedOp{
		OperationId: uuid.NewString(),
		Revision:    ds.revision,
		AuthorId:    authorID,
		ClientId:    clientID,
		ClientSeq:   clientSeq,
		Op:          o,
		Trace:       trace,
		AppliedAt:   time.Now(),
	}

	// 环形缓冲满时丢弃最老的一条
	if len(ds.opsRing) == s.ringCap {
		copy(ds.opsRing[0:], ds.opsRing[1:])
		ds.opsRing = ds.opsRing[:len(ds.opsRing)-1]
	}
	ds.opsRing = append(ds.opsRing, appliedOp)
	ds.lastSeqByClient[clientID] = clientSeq
	opsAppliedTotal.Inc()

	// 持有文档锁入队，保证同一文档的事件按版本顺序进入队列
	if s.dispatcher != nil {
		evt := DocOpEvent{
			EventType:    EventOpApplied,
			DocID:        docID,
			OperationID:  appliedOp.OperationId,
			Revision:     appliedOp.Revision,
			AuthorID:     authorID,
			ClientID:     clientID,
			ClientSeq:    clientSeq,
			BaseRevision: baseRevision,
			Op:           o,
			Trace:        trace,
			AppliedAt:    appliedOp.AppliedAt,
		}
		enqueueCtx, cancel := context.WithTimeout(context.Background(), EnqueueTimeout)
		if err := s.dispatcher.Enqueue(enqueueCtx, evt); err != nil {
			log.Printf("enqueue op event failed doc=%s rev=%d: %v", docID, appliedOp.Revision, err)
		}
		cancel()
	}

	return appliedOp, nil
}

// 返回当前文档版本（InMemoryService 实现）
func (s *InMemoryService) CurrentRevision(ctx context.Context, docID string) (uint64, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return 0, err
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.revision, nil
}

func (s *InMemoryService) LoadDocument(ctx context.Context, docID string) (doc.Span, uint64, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return nil, 0, err
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.buf.Span(), ds.revision, nil
}

// 返回 fromRevision 之后的已应用操作。环形缓冲已经丢掉了需要的部分时返回 ErrHistoryTrimmed，
// 客户端应当重新加载整个文档。
func (s *InMemoryService) OpsSince(ctx context.Context, docID string, fromRevision uint64, limit int) ([]AppliedOp, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return nil, err
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if fromRevision >= ds.revision {
		return nil, nil
	}
	// ring 中保存的是连续的 (revision-len(ring), revision] 区间
	if fromRevision < ds.revision-uint64(len(ds.opsRing)) {
		return nil, ErrHistoryTrimmed
	}

	var out []AppliedOp
	for _, ap := range ds.opsRing {
		if ap.Revision > fromRevision {
			out = append(out, ap)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *InMemoryService) SaveSnapshot(ctx context.Context, docID string) error {
	if s.snapshots == nil {
		return fmt.Errorf("snapshot %w", ErrStoreNotInitialized)
	}
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return err
	}
	ds.mu.RLock()
	span, rev := ds.buf.Span(), ds.revision
	ds.mu.RUnlock()

	if err := s.snapshots.SaveDocumentSnapshot(ctx, docID, rev, span); err != nil {
		return err
	}
	if s.cache != nil {
		b, err := json.Marshal(snapshotRecord{Revision: rev, Content: span})
		if err == nil {
			err = s.cache.Set(ctx, docID, b)
		}
		if err != nil {
			log.Printf("refresh snapshot cache doc=%s rev=%d: %v", docID, rev, err)
		}
	}
	return nil
}

func (s *InMemoryService) GetDocumentID(ctx context.Context, title string) (string, error) {
	if s.documents == nil {
		return "", fmt.Errorf("document %w", ErrStoreNotInitialized)
	}
	return s.documents.GetDocumentID(ctx, title)
}

func (s *InMemoryService) CreateDocument(ctx context.Context, ownerID uint64, title string) (string, error) {
	if s.documents == nil {
		return "", fmt.Errorf("document %w", ErrStoreNotInitialized)
	}
	return s.documents.CreateDocument(ctx, ownerID, title)
}
