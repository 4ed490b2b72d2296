// Package store 提供按 namespace 隔离的向量存储。
//
// 两个实现：
//   - MilvusStore: 生产后端，单集合 + namespace partition key
//   - MemoryStore: 进程内后端，用于本地开发与测试
package store
