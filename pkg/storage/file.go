package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"scribsy/models"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// lockRetry: пауза между попытками взять файловую блокировку
const lockRetry = 10 * time.Millisecond

// document: содержимое JSON-файла стены
type document struct {
	Posts    []models.Post         `json:"posts"`
	Archives []models.ArchiveBatch `json:"archives"`

	exists bool
}

// errSkipWrite завершает update без записи файла
var errSkipWrite = errors.New("skip write")

// FileStore хранит стену и архивы в одном JSON-документе.
// Каждая операция берёт advisory-блокировку на path+".lock" и перечитывает файл,
// поэтому несколько процессов (сервер и `scribsy archive`) работают с одним файлом
// по очереди. mu упорядочивает горутины внутри процесса.
type FileStore struct {
	path     string
	lockPath string
	mu       sync.RWMutex
	log      *zap.Logger
}

var (
	_ PostStore     = (*FileStore)(nil)
	_ ArchiveLocker = (*FileStore)(nil)
)

// NewFileStore открывает (или создаёт) файл хранилища по пути path.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileStore{path: path, lockPath: path + ".lock", log: logger.Named("filestore")}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, unavailable("create store dir", err)
		}
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		// файл мог создать другой процесс, пока мы ждали блокировку
		err := s.update(context.Background(), "init store", func(doc *document) error {
			if doc.exists {
				return errSkipWrite
			}
			s.log.Info("created empty store", zap.String("path", path))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) ListLive(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := s.view(ctx, "list live", func(doc *document) {
		posts = clonePosts(doc.Posts)
	})
	return posts, err
}

func (s *FileStore) InsertLive(ctx context.Context, post models.Post) error {
	return s.update(ctx, "insert live", func(doc *document) error {
		post.Normalize()
		doc.Posts = append([]models.Post{post.Clone()}, doc.Posts...)
		return nil
	})
}

func (s *FileStore) RemoveLive(ctx context.Context, id string) error {
	return s.update(ctx, "remove live", func(doc *document) error {
		kept := doc.Posts[:0]
		for _, p := range doc.Posts {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		doc.Posts = kept
		return nil
	})
}

func (s *FileStore) IncrementReaction(ctx context.Context, id, emoji string) (map[string]int, error) {
	var reactions map[string]int
	err := s.update(ctx, "increment reaction", func(doc *document) error {
		for i := range doc.Posts {
			if doc.Posts[i].ID != id {
				continue
			}
			doc.Posts[i].Reactions[emoji]++
			reactions = doc.Posts[i].Clone().Reactions
			return nil
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

func (s *FileStore) LatestArchiveDate(ctx context.Context) (string, bool, error) {
	var (
		date string
		ok   bool
	)
	err := s.view(ctx, "latest archive date", func(doc *document) {
		if len(doc.Archives) > 0 {
			date, ok = doc.Archives[0].Date, true
		}
	})
	return date, ok, err
}

func (s *FileStore) CreateArchiveBatch(ctx context.Context, date string, posts []models.Post) error {
	return s.update(ctx, "create archive batch", func(doc *document) error {
		prependBatch(doc, date, posts)
		return nil
	})
}

func (s *FileStore) ClearLive(ctx context.Context) error {
	return s.update(ctx, "clear live", func(doc *document) error {
		doc.Posts = []models.Post{}
		return nil
	})
}

func (s *FileStore) ListArchives(ctx context.Context) ([]models.ArchiveBatch, error) {
	var archives []models.ArchiveBatch
	err := s.view(ctx, "list archives", func(doc *document) {
		archives = make([]models.ArchiveBatch, 0, len(doc.Archives))
		for _, a := range doc.Archives {
			archives = append(archives, models.ArchiveBatch{Date: a.Date, Posts: clonePosts(a.Posts)})
		}
	})
	return archives, err
}

// MoveToArchive выполняет создание архива и очистку стены одной записью файла.
// В архив попадают текущие версии переданных постов (с реакциями, поставленными
// после чтения) в порядке posts. Посты, которых уже нет на стене, пропускаются.
func (s *FileStore) MoveToArchive(ctx context.Context, date string, posts []models.Post) ([]models.Post, error) {
	var archived []models.Post
	err := s.update(ctx, "move to archive", func(doc *document) error {
		current := make(map[string]models.Post, len(doc.Posts))
		for _, p := range doc.Posts {
			current[p.ID] = p
		}
		archived = make([]models.Post, 0, len(posts))
		for _, p := range posts {
			if live, ok := current[p.ID]; ok {
				archived = append(archived, live.Clone())
			}
		}

		prependBatch(doc, date, archived)
		moved := postIDs(posts)
		kept := make([]models.Post, 0, len(doc.Posts))
		for _, p := range doc.Posts {
			if _, ok := moved[p.ID]; !ok {
				kept = append(kept, p)
			}
		}
		doc.Posts = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// LockArchive держит эксклюзивную блокировку архивации между процессами
// до вызова unlock. Операции со стеной она не блокирует.
func (s *FileStore) LockArchive(ctx context.Context) (func(), error) {
	fl := flock.New(s.path + ".archive.lock")
	if err := lockFile(ctx, fl, false); err != nil {
		return nil, unavailable("lock archive", err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.log.Warn("unlock archive", zap.Error(err))
		}
	}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) view(ctx context.Context, op string, fn func(doc *document)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fl := flock.New(s.lockPath)
	if err := lockFile(ctx, fl, true); err != nil {
		return unavailable(op, err)
	}
	defer fl.Unlock()

	doc, err := s.load()
	if err != nil {
		return unavailable(op, err)
	}
	fn(doc)
	return nil
}

func (s *FileStore) update(ctx context.Context, op string, fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fl := flock.New(s.lockPath)
	if err := lockFile(ctx, fl, false); err != nil {
		return unavailable(op, err)
	}
	defer fl.Unlock()

	doc, err := s.load()
	if err != nil {
		return unavailable(op, err)
	}
	if err := fn(doc); err != nil {
		if errors.Is(err, errSkipWrite) {
			return nil
		}
		return err
	}
	if err := s.save(doc); err != nil {
		s.log.Error("write failed", zap.String("op", op), zap.Error(err))
		return unavailable(op, err)
	}
	return nil
}

// lockFile ждёт блокировку, пока не отменён ctx. Каждый вызов открывает
// собственный дескриптор, так что блокировка разделяет и процессы, и экземпляры FileStore.
func lockFile(ctx context.Context, fl *flock.Flock, shared bool) error {
	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = fl.TryRLockContext(ctx, lockRetry)
	} else {
		ok, err = fl.TryLockContext(ctx, lockRetry)
	}
	if err != nil {
		return err
	}
	if !ok {
		return ctx.Err()
	}
	return nil
}

// load читает документ и приводит старые записи к полному виду
func (s *FileStore) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, err
	}

	doc := document{exists: true}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	for i := range doc.Posts {
		doc.Posts[i].Normalize()
	}
	for i := range doc.Archives {
		if doc.Archives[i].Posts == nil {
			doc.Archives[i].Posts = []models.Post{}
		}
		for j := range doc.Archives[i].Posts {
			doc.Archives[i].Posts[j].Normalize()
		}
	}
	return &doc, nil
}

// save пишет документ во временный файл и атомарно подменяет основной.
// До rename данные сбрасываются на диск, поэтому после возврата запись переживает рестарт.
func (s *FileStore) save(doc *document) error {
	if doc.Posts == nil {
		doc.Posts = []models.Post{}
	}
	if doc.Archives == nil {
		doc.Archives = []models.ArchiveBatch{}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func prependBatch(doc *document, date string, posts []models.Post) {
	batch := models.ArchiveBatch{Date: date, Posts: clonePosts(posts)}
	doc.Archives = append([]models.ArchiveBatch{batch}, doc.Archives...)
}

func clonePosts(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
