package dbm

import (
	"database/sql"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/pkg/filecopy"
	"github.com/sjzar/chatview/pkg/filemonitor"
)

// Group 数据库文件分组，按正则匹配数据目录下的库文件
type Group struct {
	Name      string
	Pattern   string
	BlackList []string
}

// DBManager 管理数据目录下的 sqlite 连接
// 源文件归聊天程序所有，只读访问；文件变更时失效对应连接
type DBManager struct {
	path    string
	id      string
	fm      *filemonitor.FileMonitor
	fgs     map[string]*filemonitor.FileGroup
	dbs     map[string]*sql.DB
	dbPaths map[string][]string
	mutex   sync.RWMutex
}

func NewDBManager(path string) *DBManager {
	return &DBManager{
		path:    path,
		id:      filepath.Base(path),
		fm:      filemonitor.NewFileMonitor(),
		fgs:     make(map[string]*filemonitor.FileGroup),
		dbs:     make(map[string]*sql.DB),
		dbPaths: make(map[string][]string),
	}
}

func (d *DBManager) AddGroup(g *Group) error {
	fg, err := filemonitor.NewFileGroup(g.Name, d.path, g.Pattern, g.BlackList)
	if err != nil {
		return err
	}
	fg.AddCallback(d.callback(g.Name))
	d.fm.AddGroup(fg)
	d.mutex.Lock()
	d.fgs[g.Name] = fg
	d.mutex.Unlock()
	return nil
}

func (d *DBManager) AddCallback(group string, callback func(event fsnotify.Event) error) error {
	d.mutex.RLock()
	fg, ok := d.fgs[group]
	d.mutex.RUnlock()
	if !ok {
		return errors.FileGroupNotFound(group)
	}
	fg.AddCallback(callback)
	return nil
}

// GetDB 返回分组的第一个数据库连接
func (d *DBManager) GetDB(name string) (*sql.DB, error) {
	dbPaths, err := d.GetDBPath(name)
	if err != nil {
		return nil, err
	}
	return d.OpenDB(dbPaths[0])
}

// GetDBs 返回分组的所有数据库连接，分片消息库会有多个
func (d *DBManager) GetDBs(name string) ([]*sql.DB, error) {
	dbPaths, err := d.GetDBPath(name)
	if err != nil {
		return nil, err
	}
	dbs := make([]*sql.DB, 0, len(dbPaths))
	for _, file := range dbPaths {
		db, err := d.OpenDB(file)
		if err != nil {
			return nil, err
		}
		dbs = append(dbs, db)
	}
	return dbs, nil
}

func (d *DBManager) GetDBPath(name string) ([]string, error) {
	d.mutex.RLock()
	dbPaths, ok := d.dbPaths[name]
	d.mutex.RUnlock()
	if ok {
		return dbPaths, nil
	}

	d.mutex.RLock()
	fg, ok := d.fgs[name]
	d.mutex.RUnlock()
	if !ok {
		return nil, errors.FileGroupNotFound(name)
	}
	list, err := fg.List()
	if err != nil {
		return nil, errors.DBFileNotFound(d.path, fg.PatternStr, err)
	}
	if len(list) == 0 {
		return nil, errors.DBFileNotFound(d.path, fg.PatternStr, nil)
	}
	d.mutex.Lock()
	d.dbPaths[name] = list
	d.mutex.Unlock()
	return list, nil
}

func (d *DBManager) OpenDB(path string) (*sql.DB, error) {
	d.mutex.RLock()
	db, ok := d.dbs[path]
	d.mutex.RUnlock()
	if ok {
		return db, nil
	}
	var err error
	tempPath := path
	if runtime.GOOS == "windows" {
		// windows 下源文件被聊天程序锁定，读临时拷贝
		tempPath, err = filecopy.GetTempCopy(d.id, path)
		if err != nil {
			log.Err(err).Msgf("获取临时拷贝文件 %s 失败", path)
			return nil, err
		}
	}
	db, err = sql.Open("sqlite3", "file:"+tempPath+"?mode=ro")
	if err != nil {
		log.Err(err).Msgf("连接数据库 %s 失败", path)
		return nil, errors.DBConnectFailed(path, err)
	}
	d.mutex.Lock()
	d.dbs[path] = db
	d.mutex.Unlock()
	return db, nil
}

// callback 文件变更后失效连接与路径缓存，新分片出现时下次查询会重新发现
func (d *DBManager) callback(group string) func(event fsnotify.Event) error {
	return func(event fsnotify.Event) error {
		if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
			return nil
		}

		d.mutex.Lock()
		delete(d.dbPaths, group)
		db, ok := d.dbs[event.Name]
		if ok {
			delete(d.dbs, event.Name)
			// 延迟关闭，等在途查询收尾
			go func(db *sql.DB) {
				time.Sleep(time.Second * 5)
				db.Close()
			}(db)
		}
		d.mutex.Unlock()

		return nil
	}
}

func (d *DBManager) Start() error {
	return d.fm.Start()
}

func (d *DBManager) Stop() error {
	return d.fm.Stop()
}

func (d *DBManager) Close() error {
	d.mutex.Lock()
	for _, db := range d.dbs {
		db.Close()
	}
	d.dbs = make(map[string]*sql.DB)
	d.mutex.Unlock()
	return d.fm.Stop()
}
