package biz

import (
	"go.uber.org/fx"
)

var Module = fx.Module("biz",
	fx.Provide(NewAccessService),
	fx.Provide(NewUserListService),
	fx.Provide(NewSQLRecordStore),
	fx.Provide(NewRecordStore),
	fx.Provide(NewMailer),
	fx.Provide(NewExportService),
)
