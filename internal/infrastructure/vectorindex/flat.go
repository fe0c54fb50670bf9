package vectorindex

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"veille-rag-api/internal/domain/entity"
	"veille-rag-api/pkg/logger"
	"veille-rag-api/pkg/metrics"
)

const (
	indexFileName = "index.vec"
	metaFileName  = "metadata.json"

	// flatMagic 索引文件魔数 "VEC1"
	flatMagic uint32 = 0x56454331
)

// Flat 本地文件向量索引：内存暴力 L2 检索 + 全量落盘持久化。
// 写路径必须串行（每次 Add 重写整个索引文件），读路径可并发。
type Flat struct {
	mu      sync.RWMutex
	dir     string
	dim     int
	vectors []float32 // 扁平存储，长度 = count*dim
	metas   []entity.ChunkMetadata
}

// OpenFlat 打开或新建本地索引。
// 若磁盘上的索引维度与 dim 不一致，旧索引与元数据整体丢弃并重建：
// 这是一次有损迁移，记 WARN 日志，不向调用方报错。
func OpenFlat(ctx context.Context, dir string, dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension: %d", dim)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}

	f := &Flat{dir: dir, dim: dim}

	indexPath := filepath.Join(dir, indexFileName)
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		logger.Info(ctx, "new vector index created", "dir", dir, "dim", dim)
		return f, nil
	}

	loadedDim, vectors, err := readVectors(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	if loadedDim != dim {
		logger.Warn(ctx, "vector index dimension changed, rebuilding (old vectors discarded)",
			"old_dim", loadedDim, "new_dim", dim, "dir", dir)
		metrics.IndexRebuildsTotal.Inc()
		if err := f.persistLocked(); err != nil {
			return nil, fmt.Errorf("failed to persist rebuilt index: %w", err)
		}
		return f, nil
	}

	metas, err := readMetadata(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if len(metas) != len(vectors)/dim {
		return nil, fmt.Errorf("corrupt index: %d metadata records for %d vectors",
			len(metas), len(vectors)/dim)
	}

	f.vectors = vectors
	f.metas = metas
	logger.Info(ctx, "vector index loaded", "dir", dir, "dim", dim, "count", len(metas))
	return f, nil
}

// Add 追加向量与并行元数据并全量落盘。
// 持久化失败时回滚内存状态并报错：调用方默认写入即持久。
func (f *Flat) Add(ctx context.Context, vectors [][]float32, metas []entity.ChunkMetadata) error {
	if len(vectors) != len(metas) {
		return ErrLengthMismatch
	}
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), f.dim)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prevVectors := len(f.vectors)
	prevMetas := len(f.metas)

	for _, v := range vectors {
		f.vectors = append(f.vectors, v...)
	}
	f.metas = append(f.metas, metas...)

	if err := f.persistLocked(); err != nil {
		f.vectors = f.vectors[:prevVectors]
		f.metas = f.metas[:prevMetas]
		return fmt.Errorf("failed to persist index: %w", err)
	}

	return nil
}

// Search 暴力 L2 检索，返回至多 min(k, count) 条结果升序排列
func (f *Flat) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), f.dim)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.metas)
	if n == 0 || k <= 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}

	type scored struct {
		idx  int
		dist float32
	}
	all := make([]scored, n)
	for i := 0; i < n; i++ {
		all[i] = scored{idx: i, dist: l2Squared(query, f.vectors[i*f.dim:(i+1)*f.dim])}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].dist < all[b].dist })

	hits := make([]Hit, 0, k)
	for i := 0; i < k; i++ {
		hits = append(hits, Hit{Meta: f.metas[all[i].idx], Distance: all[i].dist})
	}
	return hits, nil
}

// Len 当前向量条数
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.metas)
}

// Dim 索引维度
func (f *Flat) Dim() int {
	return f.dim
}

// Close 本地索引无持有资源
func (f *Flat) Close() error {
	return nil
}

// persistLocked 全量写出索引与元数据（临时文件 + 原子改名）。
// 调用方必须持有写锁。
func (f *Flat) persistLocked() error {
	if err := writeVectors(filepath.Join(f.dir, indexFileName), f.dim, f.vectors); err != nil {
		return err
	}
	return writeMetadata(filepath.Join(f.dir, metaFileName), f.metas)
}

func l2Squared(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func writeVectors(path string, dim int, vectors []float32) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	header := []uint32{flatMagic, uint32(dim), uint32(len(vectors) / dim)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		file.Close()
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, vectors); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readVectors(path string) (int, []float32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer file.Close()

	r := bufio.NewReader(file)
	header := make([]uint32, 3)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return 0, nil, err
	}
	if header[0] != flatMagic {
		return 0, nil, fmt.Errorf("bad index file magic: %#x", header[0])
	}
	dim := int(header[1])
	count := int(header[2])
	if dim <= 0 {
		return 0, nil, fmt.Errorf("bad index dimension: %d", dim)
	}

	vectors := make([]float32, dim*count)
	if err := binary.Read(r, binary.LittleEndian, vectors); err != nil {
		return 0, nil, err
	}
	return dim, vectors, nil
}

func writeMetadata(path string, metas []entity.ChunkMetadata) error {
	if metas == nil {
		metas = []entity.ChunkMetadata{}
	}
	data, err := json.Marshal(metas)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readMetadata(path string) ([]entity.ChunkMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var metas []entity.ChunkMetadata
	if err := json.Unmarshal(data, &metas); err != nil {
		return nil, err
	}
	return metas, nil
}
