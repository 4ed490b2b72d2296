// Package biz 实现评分服务的业务逻辑。
//
// 组件（自底向上）：
//   - Extractor: PDF 字节流转纯文本
//   - Chunker: 固定窗口重叠分块
//   - Embedder: 批量/单条向量化，校验维度
//   - Grader: 组装评分提示词并调用 Chat 模型
//   - Ingestor: 入库流水线 Received → Extracted → Chunked → Embedded → Upserted → Complete
//   - Querier: 查询流水线 embed → top-k → 拼接上下文 → 评分
//
// 每个阶段失败时返回 *StageError，可用 errors.Is 匹配阶段类别。
package biz
