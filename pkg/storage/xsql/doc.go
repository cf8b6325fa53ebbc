// Package xsql 以 MySQL 表实现 xidem.RecordStore，基于 gorm。
//
// 每条记录一行，message_id 为主键，version 列做乐观锁：Save 以
// message_id 与旧 version 为条件更新全部列并把 version 加一，影响行数为 0 时
// 再按主键计数区分版本冲突与记录不存在。
//
// headers 以 JSON 列存储。首次部署调用 Migrate 建表与索引。
//
//	store, err := xsql.Open(dsn, xsql.WithSlowQueryThreshold(200*time.Millisecond))
//	if err != nil {
//	    return err
//	}
//	defer store.Close(ctx)
//	if err := store.Migrate(ctx); err != nil {
//	    return err
//	}
package xsql
