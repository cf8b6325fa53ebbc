package xlmstfy

import "github.com/omeyang/xdelay/pkg/observability/xmetrics"

const componentName = "xlmstfy"

// HeaderJobID Source 写入 InboundRecord 的任务 ID 头。
const HeaderJobID = "x-lmstfy-job-id"

func lmstfyAttrs(queue string) []xmetrics.Attr {
	attrs := []xmetrics.Attr{xmetrics.String("messaging.system", "lmstfy")}
	if queue != "" {
		attrs = append(attrs, xmetrics.String("messaging.destination", queue))
	}
	return attrs
}
