package application

// AnalyticsService 衍生品分析门面，命令与查询共享同一份内存状态
type AnalyticsService struct {
	Command *AnalyticsCommandService
	Query   *AnalyticsQueryService
}

// NewAnalyticsService 构造函数
func NewAnalyticsService(deps Dependencies) (*AnalyticsService, error) {
	e, err := newEngine(deps)
	if err != nil {
		return nil, err
	}
	return &AnalyticsService{
		Command: &AnalyticsCommandService{e: e},
		Query:   &AnalyticsQueryService{e: e},
	}, nil
}
