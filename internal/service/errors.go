package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserInactive       = errors.New("账号已被禁用")
	ErrUserAlreadyExists  = errors.New("用户名已存在")
	ErrTokenInvalid       = errors.New("token无效或已过期")
	ErrForbidden          = errors.New("没有权限执行此操作")
	ErrOCRPermission      = errors.New("您没有OCR识别权限")
	ErrInvalidInput       = errors.New("参数错误")

	ErrOCRNotConfigured = errors.New("未配置OCR接口，请在后台管理中添加并启用OCR配置")
	ErrNoImage          = errors.New("请先上传图片")
	ErrNotAnImage       = errors.New("请上传图片文件")
	ErrImageTooLarge    = errors.New("图片大小不能超过5MB")
	ErrQueueDisabled    = errors.New("未配置OCR任务队列")

	ErrExportNoSelection = errors.New("请选择要导出的记录")
	ErrExportTooMany     = errors.New("单次最多导出50条记录")
	ErrExportNoRecords   = errors.New("未找到记录")
	ErrExportFailed      = errors.New("导出失败")
)
