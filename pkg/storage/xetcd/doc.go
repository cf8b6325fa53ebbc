// Package xetcd 创建 xdelay 使用的 etcd 客户端。
//
// 客户端供 xdlock.NewEtcdLocker 使用，锁的租约与事务直接走 clientv3：
//
//	cli, err := xetcd.NewClient(&xetcd.Config{Endpoints: []string{"127.0.0.1:2379"}},
//	    xetcd.WithHealthCheck(true, 3*time.Second))
//	locker, err := xdlock.NewEtcdLocker(cli.Raw(), xdlock.WithKeyPrefix("xdelay:"))
package xetcd
