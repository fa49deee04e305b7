package presentation

import "github.com/xiaot623/trustbook/internal/domain"

var unknownLabel = map[string]string{
	LangEnglish: "Unknown",
	LangChinese: "未知状态",
}

var statusLabels = map[string]map[domain.SignatureStatus]string{
	LangEnglish: {
		domain.SignatureStatusUnsigned:        "Unsigned",
		domain.SignatureStatusNoCert:          "No certificate",
		domain.SignatureStatusCertNotYetValid: "Certificate not yet valid",
		domain.SignatureStatusCertExpired:     "Certificate expired",
		domain.SignatureStatusInvalid:         "Signature invalid",
		domain.SignatureStatusVerified:        "Verified",
	},
	LangChinese: {
		domain.SignatureStatusUnsigned:        "未签名",
		domain.SignatureStatusNoCert:          "未绑定证书",
		domain.SignatureStatusCertNotYetValid: "证书尚未生效",
		domain.SignatureStatusCertExpired:     "证书已过期",
		domain.SignatureStatusInvalid:         "验签失败",
		domain.SignatureStatusVerified:        "验签通过",
	},
}

var reasonLabels = map[string]map[string]string{
	LangChinese: {
		"empty signature":                              "签名为空",
		"signature is not valid base64":                "签名不是合法的 base64",
		"certificate public key is not RSA":            "证书公钥不是 RSA",
		"signature verification failed":                "签名校验失败",
		"certificate not yet valid":                    "证书尚未生效",
		"certificate expired":                          "证书已过期",
		"agent has no bound certificate":               "Agent 未绑定证书",
		"body digest mismatch":                         "请求体摘要不一致",
		"missing nonce":                                "缺少 nonce",
		"missing timestamp":                            "缺少时间戳",
		"malformed timestamp":                          "时间戳格式错误",
		"timestamp outside freshness window":           "时间戳超出有效窗口",
		"nonce already used":                           "nonce 已被使用 (重放)",
		"nonce could not be checked":                   "无法校验 nonce",
		"certificate agent name does not match signer": "证书中的 Agent 名称与签名者不一致",
	},
}

var reasonPrefixes = map[string]map[string]string{
	LangChinese: {
		"unsupported algorithm:":   "不支持的签名算法:",
		"invalid certificate pem:": "证书 PEM 无效:",
	},
}
