// Package storageopt 是 pkg/storage 下各台账实现（xmongo、xsql）共享的内核：
// 慢查询检测、兜底超时、健康检查超时与操作计数。
package storageopt
