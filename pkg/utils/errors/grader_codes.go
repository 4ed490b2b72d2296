package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 评分服务代码: 20

// 请求参数错误 (类别 01)
var (
	ErrDocumentUnreadable = Register(New(MakeCode(ServiceGrader, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Document could not be read", "文档无法解析"))
	ErrInvalidChunking    = Register(New(MakeCode(ServiceGrader, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Invalid chunking configuration", "分块配置无效"))
)

// 向量库错误 (类别 08)
var (
	ErrVectorStoreWrite       = Register(New(MakeCode(ServiceGrader, CategoryDatabase, 1), http.StatusServiceUnavailable, codes.Unavailable, "Vector store write failed", "向量库写入失败"))
	ErrVectorStoreRead        = Register(New(MakeCode(ServiceGrader, CategoryDatabase, 2), http.StatusServiceUnavailable, codes.Unavailable, "Vector store read failed", "向量库读取失败"))
	ErrVectorStoreUnavailable = Register(New(MakeCode(ServiceGrader, CategoryDatabase, 3), http.StatusServiceUnavailable, codes.Unavailable, "Vector store not ready", "向量库未就绪"))
)

// 模型调用错误 (类别 10)
var (
	ErrEmbeddingFailed = Register(New(MakeCode(ServiceGrader, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Embedding generation failed", "向量生成失败"))
	ErrGradingFailed   = Register(New(MakeCode(ServiceGrader, CategoryNetwork, 2), http.StatusBadGateway, codes.Unavailable, "Grading model call failed", "评分模型调用失败"))
)
