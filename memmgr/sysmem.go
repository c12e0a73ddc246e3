package memmgr

// fallbackAvailableBytes is assumed when the platform-specific probe in
// sysmem_linux.go / sysmem_other.go cannot determine real system memory.
// 4GiB is a deliberately conservative guess for a media-playback workload.
const fallbackAvailableBytes = 4 << 30
