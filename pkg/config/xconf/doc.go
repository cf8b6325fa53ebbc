// Package xconf 加载 xdelay 的配置，基于 koanf。
//
// 配置源按优先级从低到高：代码默认值、YAML/JSON 文件（或字节数据）、
// 以 XDELAY_ 为前缀的环境变量。环境变量中双下划线表示层级，例如
// XDELAY_STORE__MYSQL__DSN 对应 store.mysql.dsn。
//
// Load 返回的 *Config 加载后不再修改；热重载产生新的 *Config。
//
// Watch 基于 fsnotify 监视配置文件所在目录，兼容编辑器先写临时文件再
// rename 的原子写入方式。Stop 返回后不再有回调执行。
package xconf
