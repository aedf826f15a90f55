package datasource

import (
	"context"

	"github.com/sjzar/chatview/internal/errors"
)

// GetAvatar 头像表二次查找
// 联系人记录缺头像地址时，部分库版本在独立的头像表里有一份
func (ds *DataSource) GetAvatar(ctx context.Context, userName string) (string, error) {
	if userName == "" {
		return "", errors.ErrKeyEmpty
	}

	db, err := ds.dbm.GetDB(GroupContact)
	if err != nil {
		return "", err
	}

	table, err := firstTable(ctx, db, "head_image", "ContactHeadImgUrl")
	if err != nil {
		return "", err
	}
	if table == "" {
		return "", errors.ContactNotFound(userName)
	}

	cols, err := tableColumns(ctx, db, table)
	if err != nil {
		return "", err
	}
	nameCol := pickColumn(cols, "username", "usrName")
	urlCol := pickColumn(cols, "image_url", "smallHeadImgUrl", "bigHeadImgUrl")
	if nameCol == "" || urlCol == "" {
		return "", errors.UnknownColumnLayout(table)
	}

	var url string
	query := "SELECT " + urlCol + " FROM " + table + " WHERE " + nameCol + " = ? LIMIT 1"
	if err := db.QueryRowContext(ctx, query, userName).Scan(&url); err != nil {
		return "", errors.ContactNotFound(userName)
	}
	return url, nil
}
