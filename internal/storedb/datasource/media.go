package datasource

import (
	"context"
	"strings"

	"github.com/sjzar/chatview/internal/errors"
	"github.com/sjzar/chatview/internal/model"
	"github.com/sjzar/chatview/pkg/util"
)

// GetMedia 硬链接表查询，内容哈希映射到存储目录下的相对路径
// 同一个哈希可能对应原图和缩略图两条记录，原图优先
func (ds *DataSource) GetMedia(ctx context.Context, _type string, key string) (*model.Media, error) {
	if key == "" {
		return nil, errors.ErrKeyEmpty
	}
	if !util.IsContentHash(key) {
		return nil, errors.InvalidArg("key")
	}

	var table string
	switch _type {
	case "image":
		table = "image_hardlink_info_v3"
	case "video":
		table = "video_hardlink_info_v3"
	case "file":
		table = "file_hardlink_info_v3"
	default:
		return nil, errors.InvalidArg("type")
	}

	db, err := ds.dbm.GetDB(GroupMedia)
	if err != nil {
		return nil, err
	}

	// 目录以 dir2id 表序号存储，联表还原目录名
	query := `
	SELECT
		f.md5,
		f.file_name,
		f.file_size,
		f.modify_time,
		IFNULL(d1.username,""),
		IFNULL(d2.username,"")
	FROM ` + table + ` f
	LEFT JOIN dir2id d1 ON d1.rowid = f.dir1
	LEFT JOIN dir2id d2 ON d2.rowid = f.dir2
	WHERE f.md5 = ? OR f.file_name LIKE ? || '%'`

	rows, err := db.QueryContext(ctx, query, key, key)
	if err != nil {
		return nil, errors.QueryFailed(query, err)
	}
	defer rows.Close()

	var media *model.Media
	for rows.Next() {
		var row model.MediaRow
		if err := rows.Scan(
			&row.Key,
			&row.Name,
			&row.Size,
			&row.ModifyTime,
			&row.Dir1,
			&row.Dir2,
		); err != nil {
			return nil, errors.ScanRowFailed(err)
		}
		row.Type = _type

		// 名字既不带质量后缀也不是内容哈希的记录不可信，跳过
		if !model.AcceptMediaName(row.Name) {
			continue
		}

		media = row.Wrap()
		if _type == "image" && !strings.Contains(media.Name, "_t") {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ScanRowFailed(err)
	}

	if media == nil {
		return nil, errors.ErrMediaNotFound
	}
	return media, nil
}
