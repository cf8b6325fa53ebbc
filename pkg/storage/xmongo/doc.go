// Package xmongo 以 MongoDB 集合实现 xidem.RecordStore。
//
// 每条记录一个文档，_id 为 messageID。Save 以 {_id, version} 为条件整体替换文档，
// 条件不匹配时再按 _id 计数区分版本冲突与记录不存在。
//
// 所有操作带兜底超时与 OTel span；设置慢查询阈值后超时操作会触发钩子。
// 首次部署调用 EnsureIndexes 创建扫描用索引。
package xmongo
